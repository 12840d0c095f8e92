package site

import (
	"html/template"
	"strings"

	"github.com/UfSoft/ILog-OLD/internal/privileges"
	"github.com/UfSoft/ILog-OLD/internal/session"
	"github.com/UfSoft/ILog-OLD/internal/settings"
)

// NavItem is one rendered navigation link.
type NavItem struct {
	ID     string
	URL    string
	Title  string
	Active bool
}

// Message is one flashed message ready for display.
type Message struct {
	Type string
	HTML template.HTML
}

// Core is the navigation context shared by every page.
type Core struct {
	MetaNav    []NavItem
	NavBar     []NavItem
	CtxNavBar  []NavItem
	Messages   []Message
	ActivePane string
}

type navEntry struct {
	menu     string
	endpoint string
	title    string
}

// menuOf splits an endpoint into its menu and submenu. Three or more parts
// keep the first two as the menu: "admin.manage.groups.new" belongs to
// "admin.manage" under "groups".
func menuOf(endpoint string) (string, string) {
	parts := strings.Split(endpoint, ".")
	switch len(parts) {
	case 1:
		return parts[0], parts[0]
	case 2:
		return parts[0], parts[1]
	default:
		return parts[0] + "." + parts[1], parts[2]
	}
}

// buildCore assembles the navigation bars and pops the flashed messages.
func (r *Request) buildCore() Core {
	active := r.Endpoint
	if active == "" {
		active = "index"
	}
	activeMenu, activeSubmenu := menuOf(active)
	isAdmin := r.Privs.Contains(privileges.Admin)

	var metanav []navEntry
	if r.User.IsSomebody() {
		metanav = append(metanav,
			navEntry{menu: "account", endpoint: "account.logout", title: r.T("logout (%s)", r.User.Username)},
			navEntry{menu: "account", endpoint: "account.dashboard", title: r.T("My Account")},
		)
	} else {
		metanav = append(metanav, navEntry{menu: "account", endpoint: "account.login", title: r.T("Login")})
	}
	if isAdmin {
		metanav = append(metanav, navEntry{menu: "admin", endpoint: "admin.index", title: r.T("Administration")})
	}
	metanav = append(metanav, r.metanav...)

	navbar := []navEntry{{menu: "index", endpoint: "index", title: r.T("Home")}}
	if !strings.HasPrefix(activeMenu, "admin") && !strings.HasPrefix(activeMenu, "account") {
		navbar = append(navbar, navEntry{menu: "network", endpoint: "network.index", title: r.T("Networks")})
	}
	navbar = append(navbar, r.navbar...)

	if isAdmin && r.Site.store.Bool(settings.MaintenanceModeKey) {
		r.Flash(session.FlashWarning, r.T("ILog is in maintenance mode. Don't forget to turn it off again once you finish your changes."))
	}

	topMenu := strings.SplitN(activeMenu, ".", 2)[0]
	core := Core{ActivePane: active}
	for _, item := range metanav {
		core.MetaNav = append(core.MetaNav, r.navItem(item, item.menu == topMenu))
	}
	for _, item := range navbar {
		core.NavBar = append(core.NavBar, r.navItem(item, item.menu == activeMenu))
	}
	for _, item := range r.ctxNav[activeMenu] {
		core.CtxNavBar = append(core.CtxNavBar, r.navItem(item, item.menu == activeSubmenu))
	}
	for _, flash := range r.Session.PopFlashes() {
		core.Messages = append(core.Messages, Message{Type: flash.Type, HTML: flash.HTML(func(s string) string { return r.T(s) })})
	}
	return core
}

func (r *Request) navItem(entry navEntry, active bool) NavItem {
	return NavItem{ID: entry.endpoint, URL: r.URLFor(entry.endpoint), Title: entry.title, Active: active}
}
