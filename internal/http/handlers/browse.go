package handlers

import (
	"errors"
	"fmt"
	"time"

	"github.com/UfSoft/ILog-OLD/internal/db"
	"github.com/UfSoft/ILog-OLD/internal/http/site"
	"github.com/UfSoft/ILog-OLD/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const eventsPerPage = 100

// BrowseHandler serves the public network, channel and log pages.
type BrowseHandler struct {
	perPage int
}

// NewBrowseHandler returns the browse handler.
func NewBrowseHandler() *BrowseHandler { return &BrowseHandler{perPage: eventsPerPage} }

// NetworkSummary is a network with the number of logged channels.
type NetworkSummary struct {
	Slug     string
	Name     string
	Channels int64
}

// LoggedDay is one day with events, expressed in the viewer timezone.
type LoggedDay struct {
	Year   int
	Month  int
	Day    int
	Label  string
	Events int64
}

func (h *BrowseHandler) networks(r *site.Request) ([]NetworkSummary, error) {
	var out []NetworkSummary
	errScan := r.Tx.Model(&models.Network{}).
		Select("networks.slug AS slug, networks.name AS name, COUNT(channels.id) AS channels").
		Joins("LEFT JOIN channels ON channels.network_name = networks.slug").
		Group("networks.slug, networks.name").
		Order("networks.name").
		Scan(&out).Error
	if errScan != nil {
		return nil, fmt.Errorf("handlers: list networks: %w", errScan)
	}
	return out, nil
}

// Index is the start page.
func (h *BrowseHandler) Index(r *site.Request) error {
	networks, errList := h.networks(r)
	if errList != nil {
		return errList
	}
	return r.Render("index.html", site.Data{"networks": networks})
}

// Networks lists the networks with their channel counts.
func (h *BrowseHandler) Networks(r *site.Request) error {
	networks, errList := h.networks(r)
	if errList != nil {
		return errList
	}
	return r.Render("network/index.html", site.Data{"networks": networks})
}

func (h *BrowseHandler) network(r *site.Request) (*models.Network, error) {
	var network models.Network
	if errFind := r.Tx.Where("slug = ?", r.Values.String("network")).First(&network).Error; errFind != nil {
		return nil, errFind
	}
	return &network, nil
}

func (h *BrowseHandler) channel(r *site.Request) (*models.Network, *models.Channel, error) {
	network, errNetwork := h.network(r)
	if errNetwork != nil {
		return nil, nil, errNetwork
	}
	var channel models.Channel
	errFind := r.Tx.Where("network_name = ? AND name = ?", network.Slug, r.Values.String("channel")).
		Order("prefix").First(&channel).Error
	if errFind != nil {
		return nil, nil, errFind
	}
	return network, &channel, nil
}

// Channels lists the channels logged on one network.
func (h *BrowseHandler) Channels(r *site.Request) error {
	network, errNetwork := h.network(r)
	if errNetwork != nil {
		return errNetwork
	}
	var channels []models.Channel
	if errFind := r.Tx.Where("network_name = ?", network.Slug).Order("name").Find(&channels).Error; errFind != nil {
		return fmt.Errorf("handlers: list channels: %w", errFind)
	}
	return r.Render("network/channels.html", site.Data{"network": network, "channels": channels})
}

// Channel lists the days that have events, newest first.
func (h *BrowseHandler) Channel(r *site.Request) error {
	network, channel, errLoad := h.channel(r)
	if errLoad != nil {
		return errLoad
	}
	days := []LoggedDay{}
	var first, last models.IrcEvent
	errFirst := r.Tx.Where("channel_id = ?", channel.ID).Order("stamp").First(&first).Error
	switch {
	case errors.Is(errFirst, gorm.ErrRecordNotFound):
		return r.Render("network/channel.html", site.Data{"network": network, "channel": channel, "days": days})
	case errFirst != nil:
		return fmt.Errorf("handlers: first event: %w", errFirst)
	}
	if errLast := r.Tx.Where("channel_id = ?", channel.ID).Order("stamp DESC").First(&last).Error; errLast != nil {
		return fmt.Errorf("handlers: last event: %w", errLast)
	}
	expr, args := db.LocalDayExpr(r.Tx, "stamp", r.Location(), first.Stamp, last.Stamp)

	var rows []struct {
		Day    string
		Events int64
	}
	errScan := r.Tx.Model(&models.IrcEvent{}).
		Select(expr+" AS day, COUNT(*) AS events", args...).
		Where("channel_id = ?", channel.ID).
		Group("day").
		Order("day DESC").
		Scan(&rows).Error
	if errScan != nil {
		return fmt.Errorf("handlers: list days: %w", errScan)
	}

	for _, row := range rows {
		day, errParse := time.Parse("2006-01-02", row.Day)
		if errParse != nil {
			log.WithError(errParse).WithField("day", row.Day).Warn("handlers: unexpected day value")
			continue
		}
		days = append(days, LoggedDay{
			Year:   day.Year(),
			Month:  int(day.Month()),
			Day:    day.Day(),
			Label:  row.Day,
			Events: row.Events,
		})
	}
	return r.Render("network/channel.html", site.Data{"network": network, "channel": channel, "days": days})
}

// period is the browsed time range in the viewer timezone.
type period struct {
	start, end time.Time
	label      string
	values     []any
}

func browsePeriod(r *site.Request) (period, error) {
	year, month, day := r.Values.Int("year"), r.Values.Int("month"), r.Values.Int("day")
	if year < 1 || month < 0 || month > 12 || day < 0 || day > 31 || (day > 0 && month == 0) {
		return period{}, site.ErrNotFound
	}
	loc := r.Location()
	p := period{values: []any{"year", year}}
	switch {
	case day > 0:
		p.start = time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
		if p.start.Day() != day {
			return period{}, site.ErrNotFound
		}
		p.end = p.start.AddDate(0, 0, 1)
		p.label = p.start.Format("2006-01-02")
		p.values = append(p.values, "month", month, "day", day)
	case month > 0:
		p.start = time.Date(year, time.Month(month), 1, 0, 0, 0, 0, loc)
		p.end = p.start.AddDate(0, 1, 0)
		p.label = p.start.Format("2006-01")
		p.values = append(p.values, "month", month)
	default:
		p.start = time.Date(year, time.January, 1, 0, 0, 0, 0, loc)
		p.end = p.start.AddDate(1, 0, 0)
		p.label = p.start.Format("2006")
	}
	return p, nil
}

// Browse lists the events of a year, month or day, one page at a time.
func (h *BrowseHandler) Browse(r *site.Request) error {
	network, channel, errLoad := h.channel(r)
	if errLoad != nil {
		return errLoad
	}
	p, errPeriod := browsePeriod(r)
	if errPeriod != nil {
		return errPeriod
	}

	scope := r.Tx.Model(&models.IrcEvent{}).
		Where("channel_id = ? AND stamp >= ? AND stamp < ?", channel.ID, p.start.UTC(), p.end.UTC())
	var total int64
	if errCount := scope.Count(&total).Error; errCount != nil {
		return fmt.Errorf("handlers: count events: %w", errCount)
	}

	page := r.Values.Int("page")
	pagination := newPagination(page, h.perPage, total, func(n int) string {
		kv := append([]any{"network", network.Slug, "channel", channel.Name, "page", n}, p.values...)
		return r.URLFor("channel.browse", kv...)
	})
	if page > pagination.Pages {
		return site.ErrNotFound
	}

	var events []models.IrcEvent
	errFind := r.Tx.Preload("Identity").
		Where("channel_id = ? AND stamp >= ? AND stamp < ?", channel.ID, p.start.UTC(), p.end.UTC()).
		Order("stamp, id").
		Offset(pagination.Offset()).
		Limit(h.perPage).
		Find(&events).Error
	if errFind != nil {
		return fmt.Errorf("handlers: list events: %w", errFind)
	}
	return r.Render("network/browse.html", site.Data{
		"network":    network,
		"channel":    channel,
		"events":     events,
		"period":     p.label,
		"pagination": pagination,
	})
}
