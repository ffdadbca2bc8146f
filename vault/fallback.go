package vault

import "context"

// FallbackStore tries a remote store first and delegates to the primary
// on any remote failure. The fallback is logged and absorbed; callers
// never see the distinction as long as the primary succeeds.
type FallbackStore struct {
	Remote  Store
	Primary Store
	Logger  Logger
}

var _ Store = (*FallbackStore)(nil)

// NewFallbackStore creates a fallback store.
func NewFallbackStore(remote, primary Store, logger Logger) *FallbackStore {
	if logger == nil {
		logger = NopLogger{}
	}
	return &FallbackStore{Remote: remote, Primary: primary, Logger: logger}
}

// EnsureContainer ensures the container through the remote store, or the
// primary when the remote fails.
func (s *FallbackStore) EnsureContainer(ctx context.Context, container string) error {
	if err := s.check(); err != nil {
		return err
	}
	if s.Remote != nil {
		err := s.Remote.EnsureContainer(ctx, container)
		if err == nil {
			return nil
		}
		s.fallback("ensure container", container, "", err)
	}
	return s.Primary.EnsureContainer(ctx, container)
}

// Exists checks the remote store, or the primary when the remote fails.
func (s *FallbackStore) Exists(ctx context.Context, container, name string) (bool, error) {
	if err := s.check(); err != nil {
		return false, err
	}
	if s.Remote != nil {
		exists, err := s.Remote.Exists(ctx, container, name)
		if err == nil {
			return exists, nil
		}
		s.fallback("exists", container, name, err)
	}
	return s.Primary.Exists(ctx, container, name)
}

// Create writes through the remote store, or the primary when the remote
// fails.
func (s *FallbackStore) Create(ctx context.Context, container, name string, content []byte) error {
	if err := s.check(); err != nil {
		return err
	}
	if s.Remote != nil {
		err := s.Remote.Create(ctx, container, name, content)
		if err == nil {
			return nil
		}
		s.fallback("create", container, name, err)
	}
	return s.Primary.Create(ctx, container, name, content)
}

// Update writes through the remote store, or the primary when the remote
// fails.
func (s *FallbackStore) Update(ctx context.Context, container, name string, content []byte) error {
	if err := s.check(); err != nil {
		return err
	}
	if s.Remote != nil {
		err := s.Remote.Update(ctx, container, name, content)
		if err == nil {
			return nil
		}
		s.fallback("update", container, name, err)
	}
	return s.Primary.Update(ctx, container, name, content)
}

// Read reads from the remote store and falls back to the primary on a
// remote miss or failure.
func (s *FallbackStore) Read(ctx context.Context, container, name string) ([]byte, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	if s.Remote != nil {
		content, err := s.Remote.Read(ctx, container, name)
		if err == nil {
			return content, nil
		}
		s.fallback("read", container, name, err)
	}
	return s.Primary.Read(ctx, container, name)
}

func (s *FallbackStore) check() error {
	if s == nil || s.Primary == nil {
		return NewError(KindInternal, "fallback store requires a primary store", nil)
	}
	return nil
}

func (s *FallbackStore) fallback(op, container, name string, err error) {
	logger := s.Logger
	if logger == nil {
		logger = NopLogger{}
	}
	if name != "" {
		logger.Infof("remote %s failed for %s/%s, falling back to primary: %v", op, container, name, err)
		return
	}
	logger.Infof("remote %s failed for %s, falling back to primary: %v", op, container, err)
}
