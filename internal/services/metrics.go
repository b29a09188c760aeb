package services

import (
	"context"
	"os"
	"time"

	"fablab-backend-go/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

type MetricSample struct {
	CapturedAt        time.Time `json:"capturedAt"`
	ProcessRSSBytes   int64     `json:"processRssBytes"`
	SystemMemoryTotal int64     `json:"systemMemoryTotalBytes"`
	SystemMemoryUsed  int64     `json:"systemMemoryUsedBytes"`
	DiskTotalBytes    int64     `json:"diskTotalBytes"`
	DiskUsedBytes     int64     `json:"diskUsedBytes"`
	ProcessCpuLoad    float64   `json:"processCpuLoad"`
	SystemCpuLoad     float64   `json:"systemCpuLoad"`
}

// CaptureMetrics samples the host. diskPath falls back to / when it is
// missing. Individual probe failures leave their fields at zero.
func CaptureMetrics(diskPath string) MetricSample {
	sample := MetricSample{CapturedAt: time.Now().UTC()}
	if memStat, err := mem.VirtualMemory(); err == nil {
		sample.SystemMemoryTotal = int64(memStat.Total)
		sample.SystemMemoryUsed = int64(memStat.Total - memStat.Available)
	}
	diskStat, err := disk.Usage(diskPath)
	if err != nil {
		diskStat, err = disk.Usage("/")
	}
	if err == nil {
		sample.DiskTotalBytes = int64(diskStat.Total)
		sample.DiskUsedBytes = int64(diskStat.Used)
	}
	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if rss, err := proc.MemoryInfo(); err == nil && rss != nil {
			sample.ProcessRSSBytes = int64(rss.RSS)
		}
		if cpuPerc, err := proc.CPUPercent(); err == nil {
			sample.ProcessCpuLoad = cpuPerc / 100.0
		}
	}
	if sysCPU, err := cpu.Percent(0, false); err == nil && len(sysCPU) > 0 {
		sample.SystemCpuLoad = sysCPU[0] / 100.0
	}
	return sample
}

type DashboardStats struct {
	Workshops           int                           `json:"workshops"`
	UpcomingWorkshops   int                           `json:"upcoming_workshops"`
	Registrations       int                           `json:"registrations"`
	PendingRegistration int                           `json:"pending_registrations"`
	Equipment           int                           `json:"equipment"`
	PendingInnovations  int                           `json:"pending_innovations"`
	UnreadContacts      int                           `json:"unread_contacts"`
	PendingProjects     int                           `json:"pending_projects"`
	PublishedPosts      int                           `json:"published_posts"`
	Users               int                           `json:"users"`
	RecentRegistrations []models.WorkshopRegistration `json:"recent_registrations"`
	Host                MetricSample                  `json:"host"`
}

func Dashboard(ctx context.Context, database *sqlx.DB, diskPath string) (DashboardStats, error) {
	stats := DashboardStats{}
	counters := []struct {
		dst   *int
		table string
		pred  string
		args  []interface{}
	}{
		{&stats.Workshops, "workshops", "", nil},
		{&stats.UpcomingWorkshops, "workshops", "status = ? AND date >= ?", []interface{}{models.WorkshopUpcoming, utcNow()}},
		{&stats.Registrations, "workshop_registrations", "", nil},
		{&stats.PendingRegistration, "workshop_registrations", "status = ?", []interface{}{models.RegistrationPending}},
		{&stats.Equipment, "equipment", "", nil},
		{&stats.PendingInnovations, "innovations", "status = ?", []interface{}{InnovationPending}},
		{&stats.UnreadContacts, "contact_messages", "status = ?", []interface{}{ContactUnread}},
		{&stats.PendingProjects, "project_submissions", "status = ?", []interface{}{ProjectPending}},
		{&stats.PublishedPosts, "blog_posts", "status = ?", []interface{}{models.StatusPublished}},
		{&stats.Users, "users", "", nil},
	}
	for _, c := range counters {
		n, err := countWhere(ctx, database, c.table, c.pred, c.args...)
		if err != nil {
			return DashboardStats{}, err
		}
		*c.dst = n
	}
	recent := []models.WorkshopRegistration{}
	if err := database.SelectContext(ctx, &recent, `
SELECT `+registrationColumns+` FROM workshop_registrations
ORDER BY created_at DESC, id DESC
LIMIT 5
`); err != nil {
		return DashboardStats{}, WrapError(err, "recent registrations")
	}
	stats.RecentRegistrations = recent
	stats.Host = CaptureMetrics(diskPath)
	return stats, nil
}
