package handlers

import "github.com/UfSoft/ILog-OLD/internal/http/site"

// RegisterRoutes binds every endpoint of the rule table to its handler.
func RegisterRoutes(s *site.Site) {
	browse := NewBrowseHandler()
	s.Register("index", browse.Index)
	s.Register("network.index", browse.Networks)
	s.Register("network.channels", browse.Channels)
	s.Register("channel.index", browse.Channel)
	s.Register("channel.browse", browse.Browse)

	account := NewAccountHandler()
	s.Register("account.login", account.Login)
	s.Register("account.logout", account.Logout)
	s.Register("account.rpx", account.RPX)
	s.Register("account.rpx_providers", account.RPXProviders)
	s.Register("account.register", account.Register)
	s.Register("account.activate", account.Activate)
	s.Register("account.profile", account.Profile)
	s.Register("account.dashboard", account.Dashboard)
	s.Register("account.delete", account.Delete)

	admin := NewAdminHandler()
	s.Register("admin.index", admin.Index)
	s.Register("admin.manage.channels", admin.Channels)
	s.Register("admin.manage.bots", admin.Bots)

	groups := NewGroupHandler()
	s.Register("admin.manage.groups", groups.List)
	s.Register("admin.manage.groups.new", groups.Edit)
	s.Register("admin.manage.groups.edit", groups.Edit)
	s.Register("admin.manage.groups.delete", groups.Delete)

	users := NewUserHandler()
	s.Register("admin.manage.users", users.List)
	s.Register("admin.manage.users.new", users.Edit)
	s.Register("admin.manage.users.edit", users.Edit)
	s.Register("admin.manage.users.delete", users.Delete)

	networks := NewNetworkHandler()
	s.Register("admin.manage.networks", networks.List)
	s.Register("admin.manage.networks.new", networks.Edit)
	s.Register("admin.manage.networks.edit", networks.Edit)
	s.Register("admin.manage.networks.delete", networks.Delete)

	options := NewOptionsHandler()
	for _, page := range optionPages {
		s.Register(page.endpoint, options.handler(page))
	}
}
