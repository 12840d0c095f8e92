package handlers

import (
	"fmt"
	"strings"

	"github.com/UfSoft/ILog-OLD/internal/db"
	"github.com/UfSoft/ILog-OLD/internal/forms"
	"github.com/UfSoft/ILog-OLD/internal/http/site"
	"github.com/UfSoft/ILog-OLD/internal/models"
	"github.com/UfSoft/ILog-OLD/internal/session"
	"gorm.io/gorm"
)

// NetworkHandler manages IRC networks and their servers.
type NetworkHandler struct{}

// NewNetworkHandler returns the network handler.
func NewNetworkHandler() *NetworkHandler { return &NetworkHandler{} }

// List shows every network with its servers.
func (h *NetworkHandler) List(r *site.Request) error {
	if errAdmin := requireAdmin(r, manageNav); errAdmin != nil {
		return errAdmin
	}
	var networks []models.Network
	errFind := r.Tx.Preload("Servers", func(tx *gorm.DB) *gorm.DB { return tx.Order("address, port") }).
		Order("name").Find(&networks).Error
	if errFind != nil {
		return fmt.Errorf("handlers: list networks: %w", errFind)
	}
	return r.Render("admin/manage/networks.html", site.Data{"networks": networks})
}

func (h *NetworkHandler) load(r *site.Request) (*models.Network, error) {
	var network models.Network
	errFind := r.Tx.Preload("Servers", func(tx *gorm.DB) *gorm.DB { return tx.Order("id") }).
		Where("slug = ?", r.Values.String("slug")).First(&network).Error
	if errFind != nil {
		return nil, errFind
	}
	return &network, nil
}

// Edit creates a network or edits the one named by slug.
func (h *NetworkHandler) Edit(r *site.Request) error {
	if errAdmin := requireAdmin(r, manageNav); errAdmin != nil {
		return errAdmin
	}
	var network *models.Network
	if r.Values.String("slug") != "" {
		loaded, errLoad := h.load(r)
		if errLoad != nil {
			return errLoad
		}
		network = loaded
	}

	if r.IsPost() {
		switch {
		case r.Submitted("cancel"):
			return r.RedirectTo("admin.manage.networks")
		case r.Submitted("delete") && network != nil:
			return r.RedirectTo("admin.manage.networks.delete", "slug", network.Slug)
		}
	}

	form := forms.NewEditNetworkForm(network)
	if r.IsPost() && r.Bind(form) {
		isNew := network == nil
		name := strings.TrimSpace(form.Data.String("name"))
		if isNew {
			slug, errSlug := db.GenerateNetworkSlug(r.Tx, name)
			if errSlug != nil {
				return errSlug
			}
			network = &models.Network{Slug: slug}
		}
		network.Name = name
		if errSave := r.Tx.Omit("Servers", "Participations").Save(network).Error; errSave != nil {
			return fmt.Errorf("handlers: save network: %w", errSave)
		}
		servers, _ := form.Data["servers"].(forms.ServerList)
		if errSync := syncServers(r.Tx, network, servers); errSync != nil {
			return errSync
		}
		if isNew {
			r.Flash(session.FlashAdd, r.T("Network %s created successfully.", network.Name))
		} else {
			r.Flash(session.FlashOK, r.T("Network %s updated successfully.", network.Name))
		}
		return afterSave(r, "admin.manage.networks", "admin.manage.networks.edit", "slug", network.Slug)
	}

	return r.Render("admin/manage/edit_network.html", site.Data{
		"form":      form,
		"network":   network,
		"new":       network == nil,
		"deletable": network != nil,
	})
}

// syncServers makes the stored servers of network equal to wanted. Rows for
// addresses that stay keep their lag and failure counters.
func syncServers(tx *gorm.DB, network *models.Network, wanted forms.ServerList) error {
	key := func(address string, port int) string {
		return strings.ToLower(address) + ":" + fmt.Sprint(port)
	}
	keep := make(map[string]struct{}, len(wanted))
	for _, srv := range wanted {
		keep[key(srv.Address, srv.Port)] = struct{}{}
	}

	existing := make(map[string]struct{}, len(network.Servers))
	for _, srv := range network.Servers {
		k := key(srv.Address, srv.Port)
		if _, ok := keep[k]; ok {
			existing[k] = struct{}{}
			continue
		}
		if errDelete := tx.Delete(&models.NetworkServer{}, srv.ID).Error; errDelete != nil {
			return fmt.Errorf("handlers: delete server: %w", errDelete)
		}
	}
	for _, srv := range wanted {
		if _, ok := existing[key(srv.Address, srv.Port)]; ok {
			continue
		}
		row := models.NetworkServer{NetworkSlug: network.Slug, Address: srv.Address, Port: srv.Port}
		if errCreate := tx.Create(&row).Error; errCreate != nil {
			return fmt.Errorf("handlers: add server: %w", errCreate)
		}
	}
	return nil
}

// Delete removes a network with its servers and bot participations.
func (h *NetworkHandler) Delete(r *site.Request) error {
	if errAdmin := requireAdmin(r, manageNav); errAdmin != nil {
		return errAdmin
	}
	network, errLoad := h.load(r)
	if errLoad != nil {
		return errLoad
	}

	form := forms.NewConfirmForm("delete_network")
	if r.IsPost() {
		if r.Submitted("cancel") {
			return r.RedirectTo("admin.manage.networks.edit", "slug", network.Slug)
		}
		if r.Submitted("confirm") {
			for _, model := range []any{&models.NetworkServer{}, &models.NetworkParticipation{}} {
				if errDelete := r.Tx.Where("network_slug = ?", network.Slug).Delete(model).Error; errDelete != nil {
					return fmt.Errorf("handlers: delete network rows: %w", errDelete)
				}
			}
			if errDelete := r.Tx.Delete(network).Error; errDelete != nil {
				return fmt.Errorf("handlers: delete network: %w", errDelete)
			}
			r.Flash(session.FlashRemove, r.T("Network %s deleted.", network.Name))
			return r.RedirectTo("admin.manage.networks")
		}
	}
	return r.Render("admin/manage/delete_network.html", site.Data{"form": form, "network": network})
}
