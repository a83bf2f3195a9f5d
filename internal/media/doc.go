// Package media locates a lecture's streaming manifest on its playback page
// and downloads the stream to a local MP4 file.
package media
