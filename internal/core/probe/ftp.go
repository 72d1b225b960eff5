package probe

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/textproto"
	"net/url"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/speclens/speclens/internal/core"
)

// ftpActionOK is synthesized when the client library confirms the
// path exists without surfacing the wire reply code.
const ftpActionOK = 250

// probeFTP checks one ftp/ftps URL. The FTP client does not thread a
// context through every command, so the session runs on its own
// goroutine and is abandoned at the deadline; its socket timeouts
// reap it shortly after.
func probeFTP(ctx context.Context, rawURL string, opts Options, implicitTLS bool) (core.Outcome, error) {
	probeCtx, cancel := context.WithTimeout(ctx, opts.Deadline)
	defer cancel()

	type probeResult struct {
		outcome core.Outcome
		err     error
	}
	ch := make(chan probeResult, 1)
	go func() {
		outcome, err := ftpSession(probeCtx, rawURL, opts, implicitTLS)
		ch <- probeResult{outcome, err}
	}()

	select {
	case result := <-ch:
		return result.outcome, result.err
	case <-probeCtx.Done():
		if ctx.Err() != nil {
			return core.Outcome{}, ctx.Err()
		}
		return core.Outcome{TotalTime: opts.Deadline}, nil
	}
}

func ftpSession(ctx context.Context, rawURL string, opts Options, implicitTLS bool) (core.Outcome, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return core.Outcome{}, err
	}

	host := parsed.Host
	if parsed.Port() == "" {
		port := "21"
		if implicitTLS {
			port = "990"
		}
		host = net.JoinHostPort(parsed.Hostname(), port)
	}

	start := time.Now()
	var outcome core.Outcome

	dialOpts := []ftp.DialOption{
		ftp.DialWithContext(ctx),
		ftp.DialWithTimeout(opts.Deadline),
	}
	if implicitTLS {
		dialOpts = append(dialOpts, ftp.DialWithTLS(&tls.Config{ServerName: parsed.Hostname()}))
	}

	conn, err := ftp.Dial(host, dialOpts...)
	if err != nil {
		applyFTPError(&outcome, err, start, opts)
		return outcome, nil
	}
	defer func() { _ = conn.Quit() }()

	outcome.ConnectTime = time.Since(start)
	outcome.ConnectionCount = 1

	user, pass := "anonymous", "anonymous"
	if parsed.User != nil {
		user = parsed.User.Username()
		if pw, ok := parsed.User.Password(); ok {
			pass = pw
		}
	}
	if err := conn.Login(user, pass); err != nil {
		applyFTPError(&outcome, err, start, opts)
		return outcome, nil
	}

	outcome.ResponseCode = ftpPathCode(conn, parsed.Path)
	outcome.TotalTime = time.Since(start)
	return outcome, nil
}

// ftpPathCode confirms the URL's path on an open session and returns
// the reply code the classifier should see.
func ftpPathCode(conn *ftp.ServerConn, path string) int {
	if path == "" || path == "/" {
		if _, err := conn.CurrentDir(); err != nil {
			return ftpReplyCode(err)
		}
		// PWD succeeded.
		return 257
	}

	_, err := conn.FileSize(path)
	if err == nil {
		return ftpActionOK
	}
	if code := ftpReplyCode(err); code != 0 && code != 550 {
		return code
	}

	// 550 may just mean the path is a directory; a CWD settles it.
	if err := conn.ChangeDir(path); err != nil {
		return ftpReplyCode(err)
	}
	return ftpActionOK
}

func ftpReplyCode(err error) int {
	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		return protoErr.Code
	}
	return 0
}

func applyFTPError(outcome *core.Outcome, err error, start time.Time, opts Options) {
	outcome.TotalTime = time.Since(start)

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		outcome.TotalTime = opts.Deadline
	case isCertificateError(err):
		outcome.TLSVerifyResult = 1
	default:
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			outcome.HostNotFound = true
			return
		}
		if code := ftpReplyCode(err); code != 0 {
			outcome.ResponseCode = code
		}
	}
}
