package db

import (
	"path/filepath"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/UfSoft/ILog-OLD/internal/models"
	"github.com/UfSoft/ILog-OLD/internal/privileges"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := Open("file:" + filepath.Join(t.TempDir(), "ilog-test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return conn
}

func TestMigrate_SeedsPrivileges(t *testing.T) {
	conn := openTestDB(t)
	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("second migrate: %v", errMigrate)
	}

	var count int64
	if errCount := conn.Model(&models.Privilege{}).Count(&count).Error; errCount != nil {
		t.Fatalf("count privileges: %v", errCount)
	}
	if int(count) != len(privileges.Names()) {
		t.Fatalf("expected %d privileges, got %d", len(privileges.Names()), count)
	}
}

func TestGenerateNetworkSlug_Collisions(t *testing.T) {
	conn := openTestDB(t)

	want := []string{"test", "test-1", "test-2"}
	for _, expected := range want {
		slug, err := GenerateNetworkSlug(conn, "Test")
		if err != nil {
			t.Fatalf("generate slug: %v", err)
		}
		if slug != expected {
			t.Fatalf("expected slug %q, got %q", expected, slug)
		}
		if errCreate := conn.Create(&models.Network{Slug: slug, Name: "Test"}).Error; errCreate != nil {
			t.Fatalf("create network: %v", errCreate)
		}
	}
}

func TestASCIISlug(t *testing.T) {
	cases := map[string]string{
		"Free Node":        "free-node",
		"  Ünïcode   Net ": "unicode-net",
		"OFTC":             "oftc",
	}
	for in, expected := range cases {
		if got := ASCIISlug(in); got != expected {
			t.Fatalf("ASCIISlug(%q) = %q, want %q", in, got, expected)
		}
	}
}

func TestIsUniqueViolation(t *testing.T) {
	conn := openTestDB(t)

	if errCreate := conn.Create(models.NewUser("alice", "alice@example.com")).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}
	errDup := conn.Create(models.NewUser("alice", "other@example.com")).Error
	if errDup == nil {
		t.Fatalf("expected duplicate username to fail")
	}
	if !IsUniqueViolation(errDup) {
		t.Fatalf("expected unique violation, got %v", errDup)
	}
	if IsUniqueViolation(nil) {
		t.Fatalf("nil must not be a unique violation")
	}
}

func TestDayExpr_GroupsEventsByDay(t *testing.T) {
	conn := openTestDB(t)

	channel := models.Channel{Name: "ilog", NetworkName: "test", Prefix: "#"}
	if errCreate := conn.Create(&channel).Error; errCreate != nil {
		t.Fatalf("create channel: %v", errCreate)
	}
	stamps := []time.Time{
		time.Date(2010, 3, 1, 10, 0, 0, 0, time.UTC),
		time.Date(2010, 3, 1, 23, 0, 0, 0, time.UTC),
		time.Date(2010, 3, 2, 8, 0, 0, 0, time.UTC),
	}
	for _, stamp := range stamps {
		event := models.IrcEvent{ChannelID: channel.ID, Stamp: stamp, Type: "msg", Message: "hi"}
		if errCreate := conn.Create(&event).Error; errCreate != nil {
			t.Fatalf("create event: %v", errCreate)
		}
	}

	queryDays := func(offset time.Duration) []string {
		var days []string
		query := "SELECT DISTINCT " + DayExpr(conn, "stamp", offset) + " AS day FROM irc_events WHERE channel_id = ? ORDER BY day"
		if errQuery := conn.Raw(query, channel.ID).Scan(&days).Error; errQuery != nil {
			t.Fatalf("query days: %v", errQuery)
		}
		return days
	}

	days := queryDays(0)
	if len(days) != 2 || days[0] != "2010-03-01" || days[1] != "2010-03-02" {
		t.Fatalf("unexpected days %v", days)
	}
	days = queryDays(-11 * time.Hour)
	if len(days) != 2 || days[0] != "2010-02-28" || days[1] != "2010-03-01" {
		t.Fatalf("unexpected shifted days %v", days)
	}
}

func TestIsPostgresDSN(t *testing.T) {
	cases := map[string]bool{
		"postgres://u:p@db/ilog":               true,
		"PostgreSQL://db/ilog":                 true,
		"host=db user=ilog dbname=ilog":        true,
		"file:ilog.db?_pragma=foreign_keys(1)": false,
		"ilog.db":                              false,
		"mysql://db/ilog":                      false,
	}
	for dsn, want := range cases {
		if got := IsPostgresDSN(dsn); got != want {
			t.Fatalf("IsPostgresDSN(%q) = %v, want %v", dsn, got, want)
		}
	}
}

func TestZoneSpans_SplitsAtDaylightSaving(t *testing.T) {
	lisbon, errLoad := time.LoadLocation("Europe/Lisbon")
	if errLoad != nil {
		t.Skipf("tzdata unavailable: %v", errLoad)
	}
	spans := zoneSpans(lisbon,
		time.Date(2010, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2010, 7, 1, 0, 0, 0, 0, time.UTC))
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %+v", spans)
	}
	if want := time.Date(2010, 3, 28, 1, 0, 0, 0, time.UTC); !spans[0].until.Equal(want) {
		t.Fatalf("expected switch at %v, got %v", want, spans[0].until)
	}
	if spans[0].offset != 0 || spans[1].offset != time.Hour {
		t.Fatalf("unexpected offsets %+v", spans)
	}

	if single := zoneSpans(time.UTC, time.Unix(0, 0), time.Unix(90*24*3600, 0)); len(single) != 1 {
		t.Fatalf("UTC should have one span, got %+v", single)
	}
}

func TestLocalDayExpr_UsesOffsetOfEachEvent(t *testing.T) {
	lisbon, errLoad := time.LoadLocation("Europe/Lisbon")
	if errLoad != nil {
		t.Skipf("tzdata unavailable: %v", errLoad)
	}
	conn := openTestDB(t)
	channel := models.Channel{Name: "dst", NetworkName: "test", Prefix: "#"}
	if errCreate := conn.Create(&channel).Error; errCreate != nil {
		t.Fatalf("create channel: %v", errCreate)
	}
	// 23:30 local in winter, 00:30 of the next day local in summer.
	winter := time.Date(2010, 1, 15, 23, 30, 0, 0, time.UTC)
	summer := time.Date(2010, 6, 30, 23, 30, 0, 0, time.UTC)
	for _, stamp := range []time.Time{winter, summer} {
		event := models.IrcEvent{ChannelID: channel.ID, Stamp: stamp, Type: "msg", Message: "tick"}
		if errCreate := conn.Create(&event).Error; errCreate != nil {
			t.Fatalf("create event: %v", errCreate)
		}
	}

	expr, args := LocalDayExpr(conn, "stamp", lisbon, winter, summer)
	var rows []struct{ Day string }
	errQuery := conn.Model(&models.IrcEvent{}).
		Select(expr+" AS day", args...).
		Where("channel_id = ?", channel.ID).
		Order("day").
		Scan(&rows).Error
	if errQuery != nil {
		t.Fatalf("query days: %v", errQuery)
	}
	if len(rows) != 2 || rows[0].Day != "2010-01-15" || rows[1].Day != "2010-07-01" {
		t.Fatalf("unexpected days %+v", rows)
	}
}
