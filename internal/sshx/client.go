// Package sshx implements the remote transport over SSH.
package sshx

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/jonlambert/deliver/internal/host"
	"github.com/jonlambert/deliver/internal/logging"
	"github.com/jonlambert/deliver/internal/monitor"
)

// Transport dials a target, runs one command, and tears the connection
// down. It satisfies the executor's transport contract.
type Transport struct {
	// ConnectTimeout bounds connection setup. Once a remote command has
	// started it runs to completion or the whole process is interrupted.
	ConnectTimeout time.Duration

	// IdentityFile optionally names a private key to try after the agent.
	IdentityFile string

	Logger *logging.Logger
}

// NewTransport creates a transport with the given connection-setup timeout.
func NewTransport(connectTimeout time.Duration, logger *logging.Logger) *Transport {
	return &Transport{
		ConnectTimeout: connectTimeout,
		Logger:         logger,
	}
}

// Run connects to the target, executes the command, and returns the
// resolved result. Connection timeouts, transport errors, and non-zero
// remote exits all surface through the result.
func (t *Transport) Run(ctx context.Context, h host.Host, command string) monitor.Result {
	start := time.Now()

	client, err := t.connect(ctx, h)
	if err != nil {
		if t.Logger != nil {
			t.Logger.LogConnectionError(h.Address, h.User, err)
		}
		return monitor.Result{
			ExitCode: 255,
			Duration: time.Since(start),
			Err:      err,
		}
	}
	defer client.Close()

	if t.Logger != nil {
		t.Logger.LogConnection(h.Address, h.User, time.Since(start))
	}

	res := t.execute(ctx, client, command)
	res.Duration = time.Since(start)

	if t.Logger != nil {
		t.Logger.LogJobComplete(h.String(), res.ExitCode, res.Duration, res.Err)
	}

	return res
}

// connect establishes the SSH connection with a bounded setup timeout.
func (t *Transport) connect(ctx context.Context, h host.Host) (*ssh.Client, error) {
	config := &ssh.ClientConfig{
		User:            h.User,
		Auth:            t.authMethods(),
		HostKeyCallback: t.hostKeyCallback(),
		Timeout:         t.ConnectTimeout,
	}
	if len(config.Auth) == 0 {
		return nil, fmt.Errorf("no authentication methods available for %s", h)
	}

	dialer := &net.Dialer{Timeout: t.ConnectTimeout}
	netConn, err := dialer.DialContext(ctx, "tcp", h.Addr())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", h.Addr(), err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(netConn, h.Addr(), config)
	if err != nil {
		netConn.Close()
		return nil, fmt.Errorf("SSH handshake failed for %s: %w", h.Addr(), err)
	}

	return ssh.NewClient(sshConn, chans, reqs), nil
}

// execute runs one command over an established connection.
func (t *Transport) execute(ctx context.Context, client *ssh.Client, command string) monitor.Result {
	session, err := client.NewSession()
	if err != nil {
		return monitor.Result{
			ExitCode: 255,
			Err:      fmt.Errorf("failed to create session: %w", err),
		}
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() {
		done <- session.Run(command)
	}()

	select {
	case err := <-done:
		res := monitor.Result{
			Stdout: stdout.String(),
			Stderr: stderr.String(),
		}
		if err != nil {
			if exitErr, ok := err.(*ssh.ExitError); ok {
				// Remote command ran and exited non-zero. Not a
				// transport error.
				res.ExitCode = exitErr.ExitStatus()
				return res
			}
			res.ExitCode = 255
			res.Err = fmt.Errorf("remote execution error: %w", err)
		}
		return res

	case <-ctx.Done():
		// Ask the remote side to stop, then force it.
		session.Signal(ssh.SIGTERM)
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			session.Signal(ssh.SIGKILL)
		}
		return monitor.Result{
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
			ExitCode: 124,
			Err:      fmt.Errorf("command interrupted: %w", ctx.Err()),
		}
	}
}

// authMethods returns available authentication methods in order of
// preference: agent first, then an explicit identity file.
func (t *Transport) authMethods() []ssh.AuthMethod {
	var methods []ssh.AuthMethod

	if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
		if agentConn, err := net.Dial("unix", sock); err == nil {
			methods = append(methods, ssh.PublicKeysCallback(agent.NewClient(agentConn).Signers))
		}
	}

	if t.IdentityFile != "" {
		if keyBytes, err := os.ReadFile(t.IdentityFile); err == nil {
			if signer, err := ssh.ParsePrivateKey(keyBytes); err == nil {
				methods = append(methods, ssh.PublicKeys(signer))
			}
		}
	}

	return methods
}

// hostKeyCallback tries known_hosts first and falls back to accepting any
// key with a logged warning, since a deploy tool must work against freshly
// provisioned hosts.
func (t *Transport) hostKeyCallback() ssh.HostKeyCallback {
	if homeDir, err := os.UserHomeDir(); err == nil {
		knownHostsFile := homeDir + "/.ssh/known_hosts"
		if _, err := os.Stat(knownHostsFile); err == nil {
			if cb, err := knownhosts.New(knownHostsFile); err == nil {
				return cb
			}
		}
	}

	if cb, err := knownhosts.New("/etc/ssh/ssh_known_hosts"); err == nil {
		return cb
	}

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		if t.Logger != nil {
			t.Logger.Warn("host key verification disabled",
				"host", hostname,
			)
		}
		return nil
	}
}
