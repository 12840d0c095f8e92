package site

import (
	"fmt"

	"github.com/UfSoft/ILog-OLD/internal/http/routing"
)

// StaticPrefix is where embedded assets are served.
const StaticPrefix = "/_static"

// channelRules lists a channel index plus year, month and day browsing, each
// with an optional page suffix.
func channelRules() []routing.Rule {
	rules := []routing.Rule{routing.NewRule("/", "channel.index")}
	prefix := "/"
	for _, part := range []struct {
		digits int
		name   string
	}{{4, "year"}, {2, "month"}, {2, "day"}} {
		prefix += fmt.Sprintf("<int(%d):%s>/", part.digits, part.name)
		rules = append(rules,
			routing.NewRule(prefix, "channel.browse", routing.Values{"page": 1}),
			routing.NewRule(prefix+"page/<int:page>", "channel.browse"),
		)
	}
	return rules
}

// URLMap returns the rule table of the site.
func URLMap() *routing.Map {
	return routing.MustNew(
		routing.Rules(routing.NewRule("/", "index")),
		routing.Submount("/account", routing.Rules(
			routing.NewRule("/login", "account.login"),
			routing.NewRule("/logout", "account.logout"),
			routing.NewRule("/profile", "account.profile"),
			routing.NewRule("/dashboard", "account.dashboard"),
			routing.NewRule("/delete", "account.delete"),
			routing.NewRule("/__rpx__", "account.rpx"),
			routing.NewRule("/__rpx_providers__", "account.rpx_providers"),
			routing.NewRule("/register", "account.register"),
			routing.NewRule("/activate", "account.activate", routing.Values{"key": ""}),
			routing.NewRule("/activate/<string:key>", "account.activate"),
		)),
		routing.Submount("/network",
			routing.Rules(routing.NewRule("/", "network.index")),
			routing.Submount("/<string:network>",
				routing.Rules(routing.NewRule("/", "network.channels")),
				routing.Submount("/<string:channel>", channelRules()),
			),
		),
		routing.Submount("/admin",
			routing.Rules(routing.NewRule("/", "admin.index")),
			routing.Submount("/manage",
				routing.Rules(routing.NewRule("/", "admin.manage.groups")),
				routing.Submount("/groups", routing.Rules(
					routing.NewRule("/", "admin.manage.groups"),
					routing.NewRule("/new", "admin.manage.groups.new"),
					routing.NewRule("/edit/<int:group_id>", "admin.manage.groups.edit"),
					routing.NewRule("/delete/<int:group_id>", "admin.manage.groups.delete"),
				)),
				routing.Submount("/users", routing.Rules(
					routing.NewRule("/", "admin.manage.users"),
					routing.NewRule("/new", "admin.manage.users.new"),
					routing.NewRule("/edit/<int:user_id>", "admin.manage.users.edit"),
					routing.NewRule("/delete/<int:user_id>", "admin.manage.users.delete"),
				)),
				routing.Submount("/networks", routing.Rules(
					routing.NewRule("/", "admin.manage.networks"),
					routing.NewRule("/new", "admin.manage.networks.new"),
					routing.NewRule("/edit/<string:slug>", "admin.manage.networks.edit"),
					routing.NewRule("/delete/<string:slug>", "admin.manage.networks.delete"),
				)),
				routing.Rules(
					routing.NewRule("/channels", "admin.manage.channels"),
					routing.NewRule("/bots", "admin.manage.bots"),
				),
			),
			routing.Submount("/options", routing.Rules(
				routing.NewRule("/", "admin.options.basic"),
				routing.NewRule("/advanced", "admin.options.advanced"),
				routing.NewRule("/rpxnow", "admin.options.rpxnow"),
				routing.NewRule("/gravatar", "admin.options.gravatar"),
				routing.NewRule("/email", "admin.options.email"),
				routing.NewRule("/cache", "admin.options.cache"),
			)),
		),
	)
}
