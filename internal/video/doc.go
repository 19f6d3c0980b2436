// Package video compresses video files by shelling out to ffmpeg. Under a
// byte budget it probes the duration with ffprobe and derives a target
// bitrate; otherwise it maps the quality setting onto an x264 CRF value.
package video
