// Package monitoring turns a running battle into a small read-only web
// server for external inspection.
package monitoring

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"

	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/shirou/gopsutil/process"

	"github.com/skirmishlab/vanguard/monitoring/web"
	"github.com/skirmishlab/vanguard/sim"
)

// Monitor exposes the state of a battle session over HTTP. All endpoints are
// read-only. Turn progression stays with the session loop.
type Monitor struct {
	scheduler  *sim.TurnScheduler
	bus        *sim.EventBus
	phases     *sim.PhaseStateMachine
	portNumber int

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar
}

// NewMonitor creates a new Monitor.
func NewMonitor() *Monitor {
	return &Monitor{}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// RegisterScheduler registers the turn scheduler that drives the battle.
func (m *Monitor) RegisterScheduler(s *sim.TurnScheduler) {
	m.scheduler = s
}

// RegisterEventBus registers the bus whose recent events are shown.
func (m *Monitor) RegisterEventBus(b *sim.EventBus) {
	m.bus = b
}

// RegisterPhaseMachine registers the phase machine to report phases from.
func (m *Monitor) RegisterPhaseMachine(p *sim.PhaseStateMachine) {
	m.phases = p
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:    sim.GetIDGenerator().Generate(),
		Name:  name,
		Total: total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars)-1)
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// StartServer starts the monitor as a web server with a custom port if
// wanted. When openBrowser is set, the dashboard is opened in the default
// browser.
func (m *Monitor) StartServer(openBrowser bool) {
	r := mux.NewRouter()

	fs := web.GetAssets()
	fServer := http.FileServer(fs)
	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/phase", m.phase)
	r.HandleFunc("/api/session", m.session)
	r.HandleFunc("/api/timeline", m.timeline)
	r.HandleFunc("/api/events", m.recentEvents)
	r.HandleFunc("/api/stats", m.busStats)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.PathPrefix("/").Handler(fServer)
	http.Handle("/", r)

	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	dieOnErr(err)

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	fmt.Fprintf(os.Stderr, "Monitoring battle with %s\n", url)

	if openBrowser {
		if err := browser.OpenURL(url); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open browser: %s\n", err)
		}
	}

	go func() {
		err = http.Serve(listener, nil)
		dieOnErr(err)
	}()
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	fmt.Fprintf(w, "{\"now\":%d}", m.scheduler.Timeline().CurrentTime())
}

type phaseRsp struct {
	GamePhase   string `json:"game_phase"`
	BattlePhase string `json:"battle_phase"`
}

func (m *Monitor) phase(w http.ResponseWriter, _ *http.Request) {
	rsp := phaseRsp{
		GamePhase:   m.phases.GamePhase().String(),
		BattlePhase: m.phases.BattlePhase().String(),
	}

	writeJSON(w, rsp)
}

func (m *Monitor) session(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, m.scheduler.View())
}

type timelineEntryRsp struct {
	ExecutionTime int64  `json:"execution_time"`
	EntityID      string `json:"entity_id"`
	Kind          string `json:"kind"`
	Description   string `json:"description"`
}

func (m *Monitor) timeline(w http.ResponseWriter, r *http.Request) {
	count := 10
	if countStr := r.URL.Query().Get("count"); countStr != "" {
		n, err := strconv.Atoi(countStr)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, "Error: %s", err)
			return
		}
		count = n
	}

	entries := m.scheduler.Timeline().Preview(count)

	rsp := make([]timelineEntryRsp, 0, len(entries))
	for _, e := range entries {
		rsp = append(rsp, timelineEntryRsp{
			ExecutionTime: int64(e.ExecutionTime),
			EntityID:      e.EntityID,
			Kind:          e.Kind.String(),
			Description:   e.Description,
		})
	}

	writeJSON(w, rsp)
}

type eventRsp struct {
	Tick   int64  `json:"tick"`
	Type   string `json:"type"`
	Entity string `json:"entity"`
	Source string `json:"source"`
}

func (m *Monitor) recentEvents(w http.ResponseWriter, _ *http.Request) {
	events := m.bus.RecentEvents(32)

	rsp := make([]eventRsp, 0, len(events))
	for _, qe := range events {
		rsp = append(rsp, eventRsp{
			Tick:   int64(qe.Event.Tick()),
			Type:   string(qe.Event.Type()),
			Entity: qe.Event.Entity(),
			Source: qe.Source,
		})
	}

	writeJSON(w, rsp)
}

func (m *Monitor) busStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, m.bus.Statistics())
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	writeJSON(w, m.progressBars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	process, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := process.CPUPercent()
	dieOnErr(err)

	memorySize, err := process.MemoryInfo()
	dieOnErr(err)

	rsp := resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	}

	writeJSON(w, rsp)
}

func writeJSON(w http.ResponseWriter, v any) {
	bytes, err := json.Marshal(v)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(bytes)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
