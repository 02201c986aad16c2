package tui

import (
	"strings"

	"github.com/rashiika/medtrax/pkg/domain"
)

// noticeModel stands in for pages that only exist in the web portal.
type noticeModel struct {
	route     domain.Route
	portalURL string
	opened    bool
	err       string
}

func newNoticeModel(route domain.Route, portalURL string) noticeModel {
	return noticeModel{route: route, portalURL: portalURL}
}

func (m noticeModel) url() string {
	return strings.TrimRight(m.portalURL, "/") + string(m.route)
}

// open hands the page off to the browser.
func (m noticeModel) open(openURL func(string) error) noticeModel {
	if m.portalURL == "" {
		m.err = "no portal URL configured"
		return m
	}
	if err := openURL(m.url()); err != nil {
		m.err = err.Error()
		return m
	}
	m.opened = true
	m.err = ""
	return m
}

func (m noticeModel) View() string {
	var b strings.Builder
	b.WriteString("\n  " + titleStyle.Render(string(m.route)) + "\n\n")
	b.WriteString("  " + normalStyle.Render("This page is only available in the web portal.") + "\n")
	if m.portalURL != "" {
		b.WriteString("  " + metaStyle.Render(m.url()) + "\n")
	}
	switch {
	case m.err != "":
		b.WriteString("\n  " + errorStyle.Render(m.err) + "\n")
	case m.opened:
		b.WriteString("\n  " + dimStyle.Render("opened in your browser") + "\n")
	}
	return b.String()
}
