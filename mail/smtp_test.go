package mail

import (
	"context"
	"net"
	"net/textproto"
	"strings"
	"testing"
	"time"
)

// fakeRelay accepts one SMTP session and reports the envelope and message.
type fakeRelay struct {
	from, to, data string
}

func serveRelay(t *testing.T, ln net.Listener, got chan<- fakeRelay) {
	conn, err := ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()
	tp := textproto.NewConn(conn)
	var r fakeRelay
	_ = tp.PrintfLine("220 relay.test ESMTP")
	for {
		line, err := tp.ReadLine()
		if err != nil {
			got <- r
			return
		}
		cmd := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
			_ = tp.PrintfLine("250 relay.test")
		case strings.HasPrefix(cmd, "MAIL FROM:"):
			r.from = line[len("MAIL FROM:"):]
			_ = tp.PrintfLine("250 ok")
		case strings.HasPrefix(cmd, "RCPT TO:"):
			r.to = line[len("RCPT TO:"):]
			_ = tp.PrintfLine("250 ok")
		case cmd == "DATA":
			_ = tp.PrintfLine("354 go ahead")
			data, err := tp.ReadDotBytes()
			if err != nil {
				t.Errorf("reading data: %v", err)
			}
			r.data = string(data)
			_ = tp.PrintfLine("250 queued")
		case cmd == "QUIT":
			_ = tp.PrintfLine("221 bye")
			got <- r
			return
		default:
			_ = tp.PrintfLine("502 not implemented")
		}
	}
}

func TestSMTPSend(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	got := make(chan fakeRelay, 1)
	go serveRelay(t, ln, got)

	addr := ln.Addr().(*net.TCPAddr)
	m := &SMTP{Host: "127.0.0.1", Port: addr.Port, From: "noreply@sociapi.test", Timeout: 5 * time.Second}
	body := "Click this link to reset your password:\n\nhttp://client.test/reset-password/abc"
	if err := m.Send(context.Background(), "ada@example.com", "Password Reset", body); err != nil {
		t.Fatalf("Send: %v", err)
	}

	var r fakeRelay
	select {
	case r = <-got:
	case <-time.After(5 * time.Second):
		t.Fatalf("relay never finished the session")
	}
	if r.from != "<noreply@sociapi.test>" || r.to != "<ada@example.com>" {
		t.Fatalf("envelope from=%q to=%q", r.from, r.to)
	}
	for _, want := range []string{
		"From: noreply@sociapi.test\n",
		"To: ada@example.com\n",
		"Subject: Password Reset\n",
		"http://client.test/reset-password/abc\n",
	} {
		if !strings.Contains(r.data, want) {
			t.Fatalf("message %q lacks %q", r.data, want)
		}
	}
}

func TestSMTPSendUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	m := &SMTP{Host: "127.0.0.1", Port: port, From: "noreply@sociapi.test", Timeout: time.Second}
	if err := m.Send(context.Background(), "ada@example.com", "s", "b"); err == nil {
		t.Fatalf("expected an error without a relay")
	}
}
