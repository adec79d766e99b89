package notifier

import (
	"errors"
	"strings"
	"testing"
	"time"
)

type recorder struct {
	titles   []string
	messages []string
	err      error
}

func (r *recorder) send(title, message string) error {
	r.titles = append(r.titles, title)
	r.messages = append(r.messages, message)
	return r.err
}

func TestNotifier_BuildSuccess(t *testing.T) {
	rec := &recorder{}
	n := New(Config{Enabled: true, Send: rec.send}, nil)

	n.NotifyBuildSuccess(3, 1500*time.Millisecond)

	if len(rec.titles) != 1 || !strings.Contains(rec.titles[0], "succeeded") {
		t.Fatalf("unexpected notifications %v", rec.titles)
	}
	if rec.messages[0] != "3 target(s) built in 1.5s" {
		t.Errorf("unexpected message %q", rec.messages[0])
	}
}

func TestNotifier_BuildFailure(t *testing.T) {
	rec := &recorder{err: errors.New("no notification daemon")}
	n := New(Config{Enabled: true, Send: rec.send}, nil)

	n.NotifyBuildFailure(errors.New("build failed on GccAsm target boot"))

	if len(rec.messages) != 1 || !strings.Contains(rec.messages[0], "target boot") {
		t.Errorf("unexpected notifications %v", rec.messages)
	}
}

func TestNotifier_Disabled(t *testing.T) {
	rec := &recorder{}
	n := New(Config{Enabled: false, Send: rec.send}, nil)

	n.NotifyBuildSuccess(1, time.Second)
	n.NotifyBuildFailure(errors.New("x"))

	if len(rec.titles) != 0 {
		t.Errorf("disabled notifier sent %v", rec.titles)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{250 * time.Millisecond, "250ms"},
		{2 * time.Second, "2.0s"},
		{125 * time.Second, "2m5s"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
