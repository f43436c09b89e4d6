package youtubeapi

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/google/uuid"
)

// DownloadAudio fetches the audio track of a video with yt-dlp into dir and
// returns the file path. Single attempt, bounded by ctx. The caller owns the
// file and must remove it on every exit path.
func DownloadAudio(ctx context.Context, videoURL, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir download dir: %w", err)
	}
	out := filepath.Join(dir, "audio_"+uuid.NewString()+".m4a")
	args := []string{
		"-f", "bestaudio[ext=m4a]/bestaudio",
		"--no-playlist",
		"-o", out,
		videoURL,
	}
	cmd := exec.CommandContext(ctx, "yt-dlp", args...)
	if outBytes, err := cmd.CombinedOutput(); err != nil {
		_ = os.Remove(out)
		return "", fmt.Errorf("yt-dlp: %w: %s", err, string(outBytes))
	}
	if _, err := os.Stat(out); err != nil {
		return "", fmt.Errorf("yt-dlp produced no output file: %w", err)
	}
	return out, nil
}
