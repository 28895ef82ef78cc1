package provision

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/retry"
	"golang.org/x/crypto/ssh"
)

const verifyTimeout = 5 * time.Second

// verifyLogin opens an SSH session to the local daemon with the password,
// allowing a few attempts while a restarted sshd comes back.
func verifyLogin(ctx context.Context, port uint16, username, password string) error {
	cfg := &ssh.ClientConfig{
		User:            username,
		Auth:            []ssh.AuthMethod{ssh.Password(password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec // loopback only
		Timeout:         verifyTimeout,
	}
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(int(port)))
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			client, err := ssh.Dial("tcp", addr, cfg)
			if err != nil {
				return err
			}
			return client.Close()
		},
		NotifyFunc: func(err error, attempt int) {
			logger.Debugf("ssh login attempt %d: %v", attempt, err)
		},
		Attempts: 3,
		Delay:    time.Second,
		Clock:    clock.WallClock,
		Stop:     ctx.Done(),
	})
	if retry.IsAttemptsExceeded(err) {
		err = retry.LastError(err)
	}
	if err != nil {
		return errors.Annotatef(err, "logging in to %s as %s", addr, username)
	}
	return nil
}
