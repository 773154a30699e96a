// Package playback manages the outbound audio path: ffmpeg transcode
// subprocesses streaming PCM into the voice connection, and the ducking
// choreography around acknowledgment overlays.
package playback

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
)

const ffmpegBinary = "ffmpeg"

// launchFunc starts a transcode of file at the given volume multiplier and
// returns the PCM stream plus a wait function that reports the process exit.
// volume 1.0 means no filter. Overridden in tests.
type launchFunc func(ctx context.Context, file string, volume float64) (io.ReadCloser, func() error, error)

// launchFFmpeg starts ffmpeg decoding file to 48kHz stereo s16le on stdout.
// The flags favour latency over probing accuracy: tiny probe window, no
// demuxer buffering, flush after every packet.
func launchFFmpeg(ctx context.Context, file string, volume float64) (io.ReadCloser, func() error, error) {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-probesize", "32768",
		"-analyzeduration", "0",
		"-fflags", "nobuffer",
		"-i", file,
	}
	if volume != 1.0 {
		args = append(args, "-af", "volume="+strconv.FormatFloat(volume, 'f', 2, 64))
	}
	args = append(args,
		"-f", "s16le",
		"-ar", "48000",
		"-ac", "2",
		"-flush_packets", "1",
		"pipe:1",
	)

	cmd := exec.CommandContext(ctx, ffmpegBinary, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("playback: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("playback: start ffmpeg: %w", err)
	}
	return stdout, cmd.Wait, nil
}
