package mail

import (
	"context"
	"net/smtp"
	"strings"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendLogOnly(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()

	sender := NewSender(func() Settings {
		return Settings{LogOnly: true, Signature: "ILog"}
	})
	sender.send = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatalf("smtp must not be used in log-only mode")
		return nil
	}

	err := sender.Send(context.Background(), Message{To: []string{"a@example.com"}, Subject: "Hi", Body: "hello"})
	require.NoError(t, err)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, log.InfoLevel, entry.Level)
	assert.Equal(t, "Hi", entry.Data["subject"])
	assert.Contains(t, entry.Message, "hello")
	assert.Contains(t, entry.Message, "-- \nILog")
}

func TestSendSMTP(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte

	sender := NewSender(func() Settings {
		return Settings{Host: "mail.example.com", Port: 2525, FromName: "ILog", FromAddress: "ilog@example.com"}
	})
	sender.now = func() time.Time { return time.Date(2010, 5, 1, 12, 0, 0, 0, time.UTC) }
	sender.send = func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		assert.Nil(t, auth)
		return nil
	}

	err := sender.Send(context.Background(), Message{To: []string{"a@example.com", "b@example.com"}, Subject: "Activate", Body: "line1\nline2"})
	require.NoError(t, err)

	assert.Equal(t, "mail.example.com:2525", gotAddr)
	assert.Equal(t, "ilog@example.com", gotFrom)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, gotTo)
	text := string(gotMsg)
	assert.True(t, strings.HasPrefix(text, "From: \"ILog\" <ilog@example.com>\r\n"))
	assert.Contains(t, text, "To: a@example.com, b@example.com\r\n")
	assert.Contains(t, text, "Subject: Activate\r\n")
	assert.Contains(t, text, "\r\n\r\nline1\r\nline2")
}

func TestSendErrors(t *testing.T) {
	sender := NewSender(func() Settings { return Settings{Host: "localhost", Port: 25} })
	assert.ErrorIs(t, sender.Send(context.Background(), Message{}), errNoRecipients)
	assert.ErrorIs(t, sender.Send(context.Background(), Message{To: []string{"a@example.com"}}), errNoSender)
}
