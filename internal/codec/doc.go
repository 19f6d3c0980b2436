// Package codec adapts libvips (via govips) to the engine's Source contract:
// decode once, encode many times at independent parameters. When libvips is
// not available a pure-Go fallback covers JPEG and PNG via the imaging
// library; WebP and AVIF output then report an encode error and drop out of
// races naturally.
package codec
