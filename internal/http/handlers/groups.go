package handlers

import (
	"fmt"

	"github.com/UfSoft/ILog-OLD/internal/forms"
	"github.com/UfSoft/ILog-OLD/internal/http/site"
	"github.com/UfSoft/ILog-OLD/internal/models"
	"github.com/UfSoft/ILog-OLD/internal/privileges"
	"github.com/UfSoft/ILog-OLD/internal/session"
)

// GroupHandler manages groups.
type GroupHandler struct{}

// NewGroupHandler returns the group handler.
func NewGroupHandler() *GroupHandler { return &GroupHandler{} }

// List shows every group with its members and privileges.
func (h *GroupHandler) List(r *site.Request) error {
	if errAdmin := requireAdmin(r, manageNav); errAdmin != nil {
		return errAdmin
	}
	var groups []models.Group
	if errFind := r.Tx.Preload("Users").Preload("Privileges").Order("name").Find(&groups).Error; errFind != nil {
		return fmt.Errorf("handlers: list groups: %w", errFind)
	}
	return r.Render("admin/manage/groups.html", site.Data{"groups": groups})
}

func (h *GroupHandler) load(r *site.Request, withUsers bool) (*models.Group, error) {
	query := r.Tx.Preload("Privileges")
	if withUsers {
		query = query.Preload("Users")
	}
	var group models.Group
	if errFind := query.First(&group, r.Values.Int("group_id")).Error; errFind != nil {
		return nil, errFind
	}
	return &group, nil
}

// Edit creates a group or edits the one named by group_id.
func (h *GroupHandler) Edit(r *site.Request) error {
	if errAdmin := requireAdmin(r, manageNav); errAdmin != nil {
		return errAdmin
	}
	var group *models.Group
	if r.Values.Int("group_id") != 0 {
		loaded, errLoad := h.load(r, false)
		if errLoad != nil {
			return errLoad
		}
		group = loaded
	}

	if r.IsPost() {
		switch {
		case r.Submitted("cancel"):
			return r.RedirectTo("admin.manage.groups")
		case r.Submitted("delete") && group != nil:
			return r.RedirectTo("admin.manage.groups.delete", "group_id", group.ID)
		}
	}

	form := forms.NewEditGroupForm(r.Tx, group)
	if r.IsPost() && r.Bind(form) {
		isNew := group == nil
		if isNew {
			group = &models.Group{}
		}
		group.Name = form.Data.String("groupname")
		granted, errBind := privileges.Bind(r.Tx, form.Data.Strings("privileges"))
		if errBind != nil {
			return errBind
		}
		if errSave := r.Tx.Omit("Privileges", "Users").Save(group).Error; errSave != nil {
			return fmt.Errorf("handlers: save group: %w", errSave)
		}
		if errReplace := r.Tx.Model(group).Association("Privileges").Replace(granted); errReplace != nil {
			return fmt.Errorf("handlers: set group privileges: %w", errReplace)
		}
		if isNew {
			r.Flash(session.FlashAdd, r.T("Group %s created successfully.", group.Name))
		} else {
			r.Flash(session.FlashOK, r.T("Group %s updated successfully.", group.Name))
		}
		return afterSave(r, "admin.manage.groups", "admin.manage.groups.edit", "group_id", group.ID)
	}

	return r.Render("admin/manage/edit_group.html", site.Data{
		"form":      form,
		"group":     group,
		"new":       group == nil,
		"deletable": group != nil,
	})
}

// Delete removes a group, detaching or relocating its members.
func (h *GroupHandler) Delete(r *site.Request) error {
	if errAdmin := requireAdmin(r, manageNav); errAdmin != nil {
		return errAdmin
	}
	group, errLoad := h.load(r, true)
	if errLoad != nil {
		return errLoad
	}
	form, errForm := forms.NewDeleteGroupForm(r.Tx, group)
	if errForm != nil {
		return errForm
	}

	if r.IsPost() {
		if r.Submitted("cancel") {
			return r.RedirectTo("admin.manage.groups.edit", "group_id", group.ID)
		}
		if r.Submitted("confirm") && r.Bind(form) {
			target, _ := form.Data["relocate_to"].(*models.Group)
			if form.Data.String("what_to_do") != forms.Relocate {
				target = nil
			}
			if errDelete := deleteGroup(r, group, target); errDelete != nil {
				return errDelete
			}
			if target != nil {
				r.Flash(session.FlashRemove, r.T("Group %s deleted and its users moved to %s.", group.Name, target.Name))
			} else {
				r.Flash(session.FlashRemove, r.T("Group %s deleted.", group.Name))
			}
			return r.RedirectTo("admin.manage.groups")
		}
	}
	return r.Render("admin/manage/delete_group.html", site.Data{"form": form, "group": group})
}

// deleteGroup moves the members into target when set, then removes group.
func deleteGroup(r *site.Request, group, target *models.Group) error {
	if target != nil && len(group.Users) > 0 {
		if errAppend := r.Tx.Model(target).Association("Users").Append(group.Users); errAppend != nil {
			return fmt.Errorf("handlers: relocate users: %w", errAppend)
		}
	}
	for _, assoc := range []string{"Users", "Privileges"} {
		if errClear := r.Tx.Model(group).Association(assoc).Clear(); errClear != nil {
			return fmt.Errorf("handlers: clear group %s: %w", assoc, errClear)
		}
	}
	if errDelete := r.Tx.Delete(group).Error; errDelete != nil {
		return fmt.Errorf("handlers: delete group: %w", errDelete)
	}
	return nil
}
