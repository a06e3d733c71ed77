package imessage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Sender delivers outbound messages through the Messages app via
// osascript. Delivery is fire-and-confirm: a zero exit status from the
// script means Messages accepted the send.
type Sender struct {
	logger *slog.Logger
	debug  bool

	// run is swapped out in tests.
	run func(ctx context.Context, script string) error
}

func NewSender(log *slog.Logger, debug bool) *Sender {
	if log == nil {
		log = slog.Default()
	}
	s := &Sender{
		logger: log.With(slog.String("component", "sender")),
		debug:  debug,
	}
	s.run = s.runOsascript
	return s
}

func (s *Sender) runOsascript(ctx context.Context, script string) error {
	cmd := exec.CommandContext(ctx, "osascript", "-e", script)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("imessage: osascript: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// SendText sends a plain text message to a phone number or email address.
func (s *Sender) SendText(ctx context.Context, to, text string) (Receipt, error) {
	if strings.TrimSpace(to) == "" {
		return Receipt{}, fmt.Errorf("imessage: send text: recipient is required")
	}
	if text == "" {
		return Receipt{}, fmt.Errorf("imessage: send text: message is required")
	}
	sendID := uuid.NewString()
	if s.debug {
		s.logger.Debug("sending text", slog.String("to", to), slog.String("send_id", sendID))
	}
	if err := s.run(ctx, sendTextScript(to, text)); err != nil {
		return Receipt{}, fmt.Errorf("imessage: send to %s: %w", to, err)
	}
	s.logger.Info("message sent", slog.String("to", to), slog.String("send_id", sendID))
	return Receipt{To: to, SentAt: time.Now().UTC()}, nil
}

// SendFile sends one file, optionally preceded by a caption message.
func (s *Sender) SendFile(ctx context.Context, to, path, caption string) (Receipt, error) {
	return s.SendFiles(ctx, to, []string{path}, caption)
}

// SendFiles sends several files in order, optionally preceded by a caption.
func (s *Sender) SendFiles(ctx context.Context, to string, paths []string, caption string) (Receipt, error) {
	if strings.TrimSpace(to) == "" {
		return Receipt{}, fmt.Errorf("imessage: send files: recipient is required")
	}
	if len(paths) == 0 {
		return Receipt{}, fmt.Errorf("imessage: send files: at least one file is required")
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			return Receipt{}, fmt.Errorf("imessage: send files: %s: %w", p, err)
		}
	}
	sendID := uuid.NewString()
	if caption != "" {
		if err := s.run(ctx, sendTextScript(to, caption)); err != nil {
			return Receipt{}, fmt.Errorf("imessage: send caption to %s: %w", to, err)
		}
	}
	for _, p := range paths {
		if err := s.run(ctx, sendFileScript(to, p)); err != nil {
			return Receipt{}, fmt.Errorf("imessage: send file %s to %s: %w", p, to, err)
		}
	}
	s.logger.Info("files sent", slog.String("to", to), slog.Int("count", len(paths)), slog.String("send_id", sendID))
	return Receipt{To: to, SentAt: time.Now().UTC()}, nil
}

func sendTextScript(to, text string) string {
	return fmt.Sprintf(`tell application "Messages"
	set targetService to 1st account whose service type = iMessage
	set targetBuddy to participant %s of targetService
	send %s to targetBuddy
end tell`, appleScriptString(to), appleScriptString(text))
}

func sendFileScript(to, path string) string {
	return fmt.Sprintf(`tell application "Messages"
	set targetService to 1st account whose service type = iMessage
	set targetBuddy to participant %s of targetService
	send POSIX file %s to targetBuddy
end tell`, appleScriptString(to), appleScriptString(path))
}

// appleScriptString quotes a Go string as an AppleScript literal.
func appleScriptString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}
