package control

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"time"
)

// ReplyError is an "error: ..." line from the daemon.
type ReplyError struct {
	Message string
}

func (e ReplyError) Error() string { return e.Message }

// Request sends one line to the daemon at path and returns its reply.
func Request(ctx context.Context, path, line string) (string, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return "", fmt.Errorf("connect to %s: %w", path, err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(30 * time.Second))
	}

	if _, err := fmt.Fprintf(conn, "%s\n", strings.TrimSpace(line)); err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	reader := bufio.NewReader(conn)
	reply, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read reply: %w", err)
	}
	reply = strings.TrimRight(reply, "\n")
	if msg, ok := strings.CutPrefix(reply, "error: "); ok {
		return "", ReplyError{Message: msg}
	}
	return reply, nil
}
