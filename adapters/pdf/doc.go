// Package vaultpdf renders PDF companion documents for exported notes.
//
// A rendered note is wrapped in an embedded HTML shell with an inlined
// stylesheet and converted to PDF by a pluggable engine (chromedp,
// wkhtmltopdf). Rendering is gated by Renderer.Enabled.
package vaultpdf
