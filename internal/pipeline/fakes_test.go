package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"wisher/internal/config"
	"wisher/internal/session"
)

var testLocators = map[string]string{
	"Xpath001": "//open-chat",
	"Xpath002": "//message-input",
	"Xpath003": "//pending",
	"Xpath004": "//no-results",
}

type mapStore map[string]string

func (s mapStore) Fetch(ctx context.Context, name string) (string, error) {
	v, ok := s[name]
	if !ok {
		return "", fmt.Errorf("no selector %s", name)
	}
	return v, nil
}

type sentMessage struct {
	To   string
	Text string
}

// fakeWhatsApp is a tiny WhatsApp Web: known numbers open a chat, Enter
// in an open chat sends the draft.
type fakeWhatsApp struct {
	page  config.PageConfig
	known map[string]bool

	// stuck is the number of sessions in which sent messages stay
	// pending; each closed session uses one up.
	stuck int

	// pendingErrors is the number of pending-indicator checks that fail
	// as if the browser connection dropped.
	pendingErrors int

	// searchFailAt makes the open-chat lookup fail once, as a crashed
	// tab would, when that many messages have been sent.
	searchFailAt int
	searchFailed bool

	sent   []sentMessage
	opens  int
	closes int
}

func newFakeWhatsApp(page config.PageConfig, numbers ...string) *fakeWhatsApp {
	w := &fakeWhatsApp{page: page, known: make(map[string]bool)}
	for _, n := range numbers {
		w.known[compact(n)] = true
	}
	return w
}

func (w *fakeWhatsApp) sentTo(phone string) []string {
	var texts []string
	for _, m := range w.sent {
		if m.To == compact(phone) {
			texts = append(texts, m.Text)
		}
	}
	return texts
}

func (w *fakeWhatsApp) Open(ctx context.Context, url string) (session.Page, error) {
	w.opens++
	return &fakeWAPage{wa: w}, nil
}

func (w *fakeWhatsApp) KillAll(ctx context.Context) error { return nil }

type fakeWAPage struct {
	wa      *fakeWhatsApp
	search  string
	arrowed bool
	chat    string
	draft   string
	closed  bool
}

func (p *fakeWAPage) Has(xpath string) (bool, error) {
	switch xpath {
	case "//open-chat":
		if p.wa.searchFailAt > 0 && !p.wa.searchFailed && len(p.wa.sent) == p.wa.searchFailAt {
			p.wa.searchFailed = true
			return false, errors.New("cdp: target closed")
		}
		return true, nil
	case p.wa.page.ChatListXPath:
		return true, nil
	case p.wa.page.LoadingXPath:
		return false, nil
	case "//no-results":
		return p.search != "" && !p.wa.known[compact(p.search)], nil
	case "//message-input":
		return p.chat != "", nil
	case "//pending":
		if p.wa.pendingErrors > 0 {
			p.wa.pendingErrors--
			return false, errors.New("websocket: close 1006 (abnormal closure)")
		}
		return p.wa.stuck > 0, nil
	}
	return false, nil
}

func (p *fakeWAPage) Click(xpath string) error { return nil }

func (p *fakeWAPage) Input(xpath, text string) error {
	switch xpath {
	case p.wa.page.SearchFieldXPath:
		p.search, p.chat, p.arrowed = text, "", false
	case p.wa.page.MessageFieldXPath:
		p.draft = text
	}
	return nil
}

func (p *fakeWAPage) Type(text string) error {
	p.draft += text
	return nil
}

func (p *fakeWAPage) Text(xpath string) (string, error) {
	switch xpath {
	case p.wa.page.SearchFieldXPath:
		return p.search, nil
	case p.wa.page.MessageFieldXPath:
		return p.draft, nil
	}
	return "", nil
}

func (p *fakeWAPage) Press(keys ...session.Key) error {
	for _, k := range keys {
		switch k {
		case session.KeyArrowDown:
			p.arrowed = true
		case session.KeyEnter:
			switch {
			case p.chat != "" && strings.TrimSpace(p.draft) != "":
				p.wa.sent = append(p.wa.sent, sentMessage{To: p.chat, Text: p.draft})
				p.draft = ""
			case p.arrowed && p.wa.known[compact(p.search)]:
				p.chat = compact(p.search)
			}
		}
	}
	return nil
}

func (p *fakeWAPage) ShiftEnter() error {
	p.draft += "\n"
	return nil
}

func (p *fakeWAPage) Reload() error { return nil }
func (p *fakeWAPage) Alive() bool   { return !p.closed }

func (p *fakeWAPage) Close() error {
	p.closed = true
	p.wa.closes++
	if p.wa.stuck > 0 {
		p.wa.stuck--
	}
	return nil
}
