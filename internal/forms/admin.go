package forms

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/UfSoft/ILog-OLD/internal/models"
	"github.com/UfSoft/ILog-OLD/internal/privileges"
	"github.com/UfSoft/ILog-OLD/internal/validate"
	"gorm.io/gorm"
)

const (
	// DeleteMembership detaches members from a deleted group.
	DeleteMembership = "delete_membership"
	// Relocate moves members of a deleted group into another group.
	Relocate = "relocate"

	groupnameMaxLength = 30
	// DefaultIRCPort is used for server lines without a port.
	DefaultIRCPort = 6667
)

var (
	errRelocateTarget = errors.New("You have to select a group that gets the users assigned.")
	errRelocateSelf   = errors.New("A group cannot be relocated into itself.")
)

// PrivilegeChoices lists the registered privileges for multi choice fields.
func PrivilegeChoices() []Choice {
	defs := privileges.List()
	out := make([]Choice, 0, len(defs))
	for _, def := range defs {
		out = append(out, Choice{Value: def.Name, Label: def.Label})
	}
	return out
}

// NewEditGroupForm builds the group form. group is nil when creating.
func NewEditGroupForm(tx *gorm.DB, group *models.Group) *Form {
	var exclude uint64
	if group != nil {
		exclude = group.ID
	}
	form := New("edit_group",
		Text("groupname", "Groupname", Required(), MaxLength(groupnameMaxLength),
			Validate(StringValidator(validate.NotEmpty), StringValidator(func(value string) error {
				query := tx.Model(&models.Group{}).Where("name = ?", value)
				if exclude != 0 {
					query = query.Where("id <> ?", exclude)
				}
				var count int64
				if errCount := query.Count(&count).Error; errCount != nil {
					return &StorageError{Err: errCount}
				}
				if count > 0 {
					return errors.New("This groupname is already in use")
				}
				return nil
			}))),
		MultiChoice("privileges", "Privileges", WithChoices(PrivilegeChoices()...)),
	)
	if group != nil {
		names := make([]string, 0, len(group.Privileges))
		for _, p := range group.Privileges {
			names = append(names, p.Name)
		}
		form.Fill(Data{"groupname": group.Name, "privileges": names})
	}
	return form
}

// NewDeleteGroupForm builds the group delete confirmation.
func NewDeleteGroupForm(tx *gorm.DB, group *models.Group) (*Form, error) {
	var others []models.Group
	if errFind := tx.Where("id <> ?", group.ID).Order("name").Find(&others).Error; errFind != nil {
		return nil, fmt.Errorf("forms: list groups: %w", errFind)
	}
	choices := []Choice{{Value: "", Label: ""}}
	for _, other := range others {
		choices = append(choices, Choice{Value: strconv.FormatUint(other.ID, 10), Label: other.Name})
	}

	form := New("delete_group",
		SingleChoice("what_to_do", "What should ILog do with users assigned to this group?",
			Required(), WithWidget(WidgetRadio), Default(DeleteMembership), WithChoices(
				Choice{Value: DeleteMembership, Label: "Do nothing, just detach the membership"},
				Choice{Value: Relocate, Label: "Move the users to another group"},
			)),
		Model("relocate_to", "Relocate users to", ByID[models.Group](tx), WithChoices(choices...)),
	)
	form.Check(func(data Data) error {
		if data.String("what_to_do") != Relocate {
			return nil
		}
		target, _ := data["relocate_to"].(*models.Group)
		if target == nil {
			return &FieldError{Field: "relocate_to", Message: errRelocateTarget.Error()}
		}
		if target.ID == group.ID {
			return &FieldError{Field: "relocate_to", Message: errRelocateSelf.Error()}
		}
		return nil
	})
	return form, nil
}

// NewEditUserForm builds the admin user form. user is nil when creating, in
// which case a password is required.
func NewEditUserForm(tx *gorm.DB, user *models.User, languages, timezones []Choice) (*Form, error) {
	var groups []models.Group
	if errFind := tx.Order("name").Find(&groups).Error; errFind != nil {
		return nil, fmt.Errorf("forms: list groups: %w", errFind)
	}
	groupChoices := make([]Choice, 0, len(groups))
	for _, g := range groups {
		groupChoices = append(groupChoices, Choice{Value: strconv.FormatUint(g.ID, 10), Label: g.Name})
	}

	var exclude uint64
	if user != nil {
		exclude = user.ID
	}
	form := New("edit_user",
		usernameField(tx, exclude),
		Text("display_name", "Display name", MaxLength(displayNameMaxLength)),
		emailField(tx, exclude),
		Password("password", "Password"),
		Password("rep_password", "Repeat password"),
		Bool("confirmed", "Confirmed"),
		Bool("banned", "Banned"),
		MultiChoice("privileges", "Privileges", WithChoices(PrivilegeChoices()...)),
		MultiChoice("groups", "Groups", WithChoices(groupChoices...)),
		SingleChoice("locale", "Language", WithChoices(languages...), Default("en")),
		SingleChoice("timezone", "Timezone", WithChoices(timezones...), Default("UTC")),
	).Check(matchPasswords("password", "rep_password", func(Data) bool { return user == nil }))

	if user != nil {
		privs := make([]string, 0, len(user.Privileges))
		for _, p := range user.Privileges {
			privs = append(privs, p.Name)
		}
		groupIDs := make([]string, 0, len(user.Groups))
		for _, g := range user.Groups {
			groupIDs = append(groupIDs, strconv.FormatUint(g.ID, 10))
		}
		form.Fill(Data{
			"username":     user.Username,
			"display_name": user.DisplayName,
			"email":        user.Email,
			"confirmed":    user.Confirmed,
			"banned":       user.Banned,
			"privileges":   privs,
			"groups":       groupIDs,
			"locale":       user.Locale,
			"timezone":     user.Timezone,
		})
	}
	return form, nil
}

// ServerAddr is one parsed network server line.
type ServerAddr struct {
	Address string
	Port    int
}

// ServerList is the parsed value of the servers field.
type ServerList []ServerAddr

// FormValue renders the list back into one entry per line.
func (l ServerList) FormValue() string {
	lines := make([]string, 0, len(l))
	for _, srv := range l {
		lines = append(lines, net.JoinHostPort(srv.Address, strconv.Itoa(srv.Port)))
	}
	return strings.Join(lines, "\n")
}

// ParseServers parses newline or comma separated host[:port] entries.
func ParseServers(raw string) (ServerList, error) {
	out := make(ServerList, 0)
	seen := make(map[string]struct{})
	for _, line := range strings.FieldsFunc(raw, func(r rune) bool { return r == '\n' || r == ',' }) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if errAddr := validate.NetAddr(line); errAddr != nil {
			return nil, fmt.Errorf("%s: %w", line, errAddr)
		}
		host, port := line, DefaultIRCPort
		if h, p, errSplit := net.SplitHostPort(line); errSplit == nil {
			n, errConv := strconv.Atoi(p)
			if errConv != nil || n <= 0 || n > 65535 {
				return nil, fmt.Errorf("%s: %w", line, validate.ErrNonNumericPort)
			}
			host, port = h, n
		}
		key := strings.ToLower(host) + ":" + strconv.Itoa(port)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, ServerAddr{Address: host, Port: port})
	}
	return out, nil
}

// NewEditNetworkForm builds the network form. network is nil when creating.
func NewEditNetworkForm(network *models.Network) *Form {
	form := New("edit_network",
		Text("name", "Name", Required(), MaxLength(100), Validate(StringValidator(validate.NotEmpty))),
		Textarea("servers", "Servers", Help("One host:port per line."),
			ParseWith(func(raw string) (any, error) { return ParseServers(raw) })),
	)
	if network != nil {
		servers := make(ServerList, 0, len(network.Servers))
		for _, srv := range network.Servers {
			servers = append(servers, ServerAddr{Address: srv.Address, Port: srv.Port})
		}
		form.Fill(Data{"name": network.Name, "servers": servers})
	}
	return form
}
