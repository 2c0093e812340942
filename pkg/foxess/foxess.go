package foxess

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/energystats/energystats/pkg/common"
	"github.com/energystats/energystats/pkg/log"
	"github.com/energystats/energystats/pkg/types"
	"github.com/google/uuid"
	"github.com/levenlabs/go-lflag"
)

// DefaultBaseURL is the FoxESS OpenAPI endpoint.
const DefaultBaseURL = "https://www.foxesscloud.com"

const (
	pathDeviceList    = "/op/v0/device/list"
	pathRealQuery     = "/op/v0/device/real/query"
	pathHistoryQuery  = "/op/v0/device/history/query"
	pathReportQuery   = "/op/v0/device/report/query"
	pathBatterySOC    = "/op/v0/device/battery/soc/get"
	pathSchedulerGet  = "/op/v1/device/scheduler/get"
	pathSchedulerSave = "/op/v1/device/scheduler/enable"
)

// ErrUnauthorized indicates the API key or signature was rejected.
var ErrUnauthorized = errors.New("foxess: unauthorized")

// errno values the OpenAPI uses for auth failures.
var authErrnos = map[int]bool{
	41807: true, // bad signature
	41808: true, // timestamp outside tolerance
	41809: true, // invalid token
	41930: true, // token disabled
}

// Fox implements Client against the FoxESS OpenAPI. Every request is
// signed with md5(path + "\r\n" + apiKey + "\r\n" + timestamp), so there is
// no login or token refresh cycle.
type Fox struct {
	client  *http.Client
	baseURL string
	apiKey  string

	// now is swapped out in tests to pin signatures.
	now func() time.Time
}

// New creates a FoxESS OpenAPI client.
func New(apiKey, baseURL string) *Fox {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Fox{
		client:  common.HTTPClient(time.Minute),
		baseURL: baseURL,
		apiKey:  apiKey,
		now:     time.Now,
	}
}

// Configured sets up the FoxESS client based on flags.
func Configured() Client {
	apiKey := lflag.String("foxess-api-key", "", "FoxESS OpenAPI key")
	baseURL := lflag.String("foxess-api-url", DefaultBaseURL, "FoxESS OpenAPI base URL")
	useMock := lflag.Bool("foxess-mock", false, "Serve canned inverter data instead of calling the vendor cloud")

	var c struct{ Client }

	lflag.Do(func() {
		if *useMock {
			c.Client = NewMock()
			return
		}
		if *apiKey == "" {
			panic("foxess-api-key is required unless foxess-mock is set")
		}
		c.Client = New(*apiKey, *baseURL)
	})

	return &c
}

func (f *Fox) sign(path string, timestamp int64) string {
	plain := path + "\r\n" + f.apiKey + "\r\n" + strconv.FormatInt(timestamp, 10)
	sum := md5.Sum([]byte(plain))
	return hex.EncodeToString(sum[:])
}

func (f *Fox) newRequest(ctx context.Context, method, path string, query url.Values, body interface{}) (*http.Request, error) {
	u, err := url.Parse(f.baseURL)
	if err != nil {
		return nil, err
	}
	u.Path, err = url.JoinPath(u.Path, path)
	if err != nil {
		return nil, err
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, err
	}

	ts := f.now().UnixMilli()
	req.Header.Set("token", f.apiKey)
	req.Header.Set("timestamp", strconv.FormatInt(ts, 10))
	req.Header.Set("signature", f.sign(path, ts))
	req.Header.Set("lang", "en")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

type foxResponse struct {
	Errno  int             `json:"errno"`
	Msg    string          `json:"msg"`
	Result json.RawMessage `json:"result"`
}

func (f *Fox) doRequest(req *http.Request, dest interface{}) error {
	ctx := req.Context()

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("foxess: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var fr foxResponse
	if err := json.Unmarshal(body, &fr); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to decode foxess response", slog.Any("error", err), slog.String("body", string(body)))
		return err
	}

	if fr.Errno != 0 {
		if authErrnos[fr.Errno] {
			log.Ctx(ctx).ErrorContext(ctx, "foxess auth error", slog.Int("errno", fr.Errno), slog.String("msg", fr.Msg))
			return fmt.Errorf("%w: errno %d: %s", ErrUnauthorized, fr.Errno, fr.Msg)
		}
		if fr.Msg == "" {
			log.Ctx(ctx).ErrorContext(ctx, "foxess api unknown error", slog.Int("errno", fr.Errno), slog.String("body", string(body)))
			return fmt.Errorf("foxess: errno %d", fr.Errno)
		}
		log.Ctx(ctx).ErrorContext(ctx, "foxess api error", slog.Int("errno", fr.Errno), slog.String("msg", fr.Msg))
		return fmt.Errorf("foxess: errno %d: %s", fr.Errno, fr.Msg)
	}

	if dest != nil && len(fr.Result) > 0 {
		if err := json.Unmarshal(fr.Result, dest); err != nil {
			return fmt.Errorf("failed to decode foxess result: %w", err)
		}
	}
	return nil
}

type deviceListResult struct {
	Data []struct {
		DeviceSN   string `json:"deviceSN"`
		StationID  string `json:"stationID"`
		DeviceType string `json:"deviceType"`
		HasPV      bool   `json:"hasPV"`
		HasBattery bool   `json:"hasBattery"`
		ModuleSN   string `json:"moduleSN"`
	} `json:"data"`
}

// ListDevices returns the inverters visible to the API key.
func (f *Fox) ListDevices(ctx context.Context) ([]types.Device, error) {
	req, err := f.newRequest(ctx, http.MethodPost, pathDeviceList, nil, map[string]interface{}{
		"currentPage": 1,
		"pageSize":    100,
	})
	if err != nil {
		return nil, err
	}

	var res deviceListResult
	if err := f.doRequest(req, &res); err != nil {
		return nil, fmt.Errorf("device list failed: %w", err)
	}

	devices := make([]types.Device, 0, len(res.Data))
	for _, d := range res.Data {
		devices = append(devices, types.Device{
			DeviceSN:   d.DeviceSN,
			StationID:  d.StationID,
			DeviceType: d.DeviceType,
			HasPV:      d.HasPV,
			HasBattery: d.HasBattery,
			ModuleSN:   d.ModuleSN,
		})
	}
	return devices, nil
}

type realQueryResult []struct {
	DeviceSN string `json:"deviceSN"`
	Time     string `json:"time"`
	Datas    []struct {
		Variable string  `json:"variable"`
		Unit     string  `json:"unit"`
		Value    float64 `json:"value"`
	} `json:"datas"`
}

// RealTimeQuery returns the latest instantaneous readings for the named
// variables.
func (f *Fox) RealTimeQuery(ctx context.Context, deviceSN string, variables []string) ([]types.TimedSample, error) {
	body := map[string]interface{}{"sn": deviceSN}
	if len(variables) > 0 {
		body["variables"] = variables
	}
	req, err := f.newRequest(ctx, http.MethodPost, pathRealQuery, nil, body)
	if err != nil {
		return nil, err
	}

	var res realQueryResult
	if err := f.doRequest(req, &res); err != nil {
		return nil, fmt.Errorf("real-time query failed: %w", err)
	}

	var samples []types.TimedSample
	for _, device := range res {
		for _, d := range device.Datas {
			samples = append(samples, types.TimedSample{
				Variable: d.Variable,
				Time:     device.Time,
				Value:    d.Value,
			})
		}
	}
	log.Ctx(ctx).DebugContext(ctx, "foxess real-time query",
		slog.String("deviceSN", deviceSN),
		slog.Int("samples", len(samples)),
	)
	return samples, nil
}

type historyQueryResult []struct {
	DeviceSN string `json:"deviceSN"`
	Datas    []struct {
		Variable string `json:"variable"`
		Unit     string `json:"unit"`
		Data     []struct {
			Time  string  `json:"time"`
			Value float64 `json:"value"`
		} `json:"data"`
	} `json:"datas"`
}

// HistoryQuery returns the raw per-minute series for the named variables.
func (f *Fox) HistoryQuery(ctx context.Context, deviceSN string, variables []string, start, end time.Time) ([]types.TimedSample, error) {
	req, err := f.newRequest(ctx, http.MethodPost, pathHistoryQuery, nil, map[string]interface{}{
		"sn":        deviceSN,
		"variables": variables,
		"begin":     start.UnixMilli(),
		"end":       end.UnixMilli(),
	})
	if err != nil {
		return nil, err
	}

	var res historyQueryResult
	if err := f.doRequest(req, &res); err != nil {
		return nil, fmt.Errorf("history query failed: %w", err)
	}

	var samples []types.TimedSample
	for _, device := range res {
		for _, d := range device.Datas {
			for _, point := range d.Data {
				samples = append(samples, types.TimedSample{
					Variable: d.Variable,
					Time:     point.Time,
					Value:    point.Value,
				})
			}
		}
	}
	log.Ctx(ctx).DebugContext(ctx, "foxess history query",
		slog.String("deviceSN", deviceSN),
		slog.Int("samples", len(samples)),
	)
	return samples, nil
}

type reportQueryResult []struct {
	Variable string    `json:"variable"`
	Unit     string    `json:"unit"`
	Values   []float64 `json:"values"`
}

// ReportQuery returns the daily report rows for the month containing day.
// The OpenAPI returns one value per day of month; row indexes are 1-based.
func (f *Fox) ReportQuery(ctx context.Context, deviceSN string, variables []string, day time.Time) ([]types.ReportRow, error) {
	req, err := f.newRequest(ctx, http.MethodPost, pathReportQuery, nil, map[string]interface{}{
		"sn":        deviceSN,
		"variables": variables,
		"dimension": "month",
		"year":      day.Year(),
		"month":     int(day.Month()),
	})
	if err != nil {
		return nil, err
	}

	var res reportQueryResult
	if err := f.doRequest(req, &res); err != nil {
		return nil, fmt.Errorf("report query failed: %w", err)
	}

	var rows []types.ReportRow
	for _, r := range res {
		for i, v := range r.Values {
			rows = append(rows, types.ReportRow{
				Variable: r.Variable,
				Index:    i + 1,
				Value:    v,
			})
		}
	}
	return rows, nil
}

type batterySOCResult struct {
	MinSoc       int `json:"minSoc"`
	MinSocOnGrid int `json:"minSocOnGrid"`
}

// GetBatterySettings returns the device battery configuration.
func (f *Fox) GetBatterySettings(ctx context.Context, deviceSN string) (types.Battery, error) {
	query := url.Values{}
	query.Set("sn", deviceSN)
	req, err := f.newRequest(ctx, http.MethodGet, pathBatterySOC, query, nil)
	if err != nil {
		return types.Battery{}, err
	}

	var res batterySOCResult
	if err := f.doRequest(req, &res); err != nil {
		return types.Battery{}, fmt.Errorf("battery soc query failed: %w", err)
	}

	minSOC := res.MinSoc
	if res.MinSocOnGrid > minSOC {
		minSOC = res.MinSocOnGrid
	}
	return types.Battery{MinSOC: minSOC}, nil
}

// schedulerGroup is one schedule phase on the wire.
type schedulerGroup struct {
	Enable       int    `json:"enable"`
	StartHour    int    `json:"startHour"`
	StartMinute  int    `json:"startMinute"`
	EndHour      int    `json:"endHour"`
	EndMinute    int    `json:"endMinute"`
	WorkMode     string `json:"workMode"`
	MinSocOnGrid int    `json:"minSocOnGrid"`
	FdSoc        int    `json:"fdSoc"`
	FdPwr        int    `json:"fdPwr"`
	MaxSoc       int    `json:"maxSoc,omitempty"`
}

type schedulerGetResult struct {
	Enable int              `json:"enable"`
	Groups []schedulerGroup `json:"groups"`
}

// GetSchedule fetches the device's current inverter schedule. The cloud
// has no phase identity, so fresh ids are assigned on every fetch.
func (f *Fox) GetSchedule(ctx context.Context, deviceSN string) (types.Schedule, error) {
	query := url.Values{}
	query.Set("deviceSN", deviceSN)
	req, err := f.newRequest(ctx, http.MethodGet, pathSchedulerGet, query, nil)
	if err != nil {
		return types.Schedule{}, err
	}

	var res schedulerGetResult
	if err := f.doRequest(req, &res); err != nil {
		return types.Schedule{}, fmt.Errorf("scheduler get failed: %w", err)
	}

	schedule := types.Schedule{Name: "Schedule"}
	for _, g := range res.Groups {
		if g.Enable == 0 {
			continue
		}
		mode := types.WorkMode(g.WorkMode)
		phase := types.SchedulePhase{
			ID:                  uuid.NewString(),
			Start:               types.TimeOfDay{Hour: g.StartHour, Minute: g.StartMinute},
			End:                 types.TimeOfDay{Hour: g.EndHour, Minute: g.EndMinute},
			Mode:                mode,
			ForceDischargePower: g.FdPwr,
			ForceDischargeSOC:   g.FdSoc,
			MinSOC:              g.MinSocOnGrid,
			Color:               types.WorkModeDetails(mode).ColorTag,
		}
		if g.MaxSoc > 0 {
			maxSoc := g.MaxSoc
			phase.MaxSOC = &maxSoc
		}
		schedule.Phases = append(schedule.Phases, phase)
	}
	return schedule, nil
}

// SaveSchedule pushes a schedule to the device.
func (f *Fox) SaveSchedule(ctx context.Context, deviceSN string, schedule types.Schedule) error {
	groups := make([]schedulerGroup, 0, len(schedule.Phases))
	for _, p := range schedule.Phases {
		g := schedulerGroup{
			Enable:       1,
			StartHour:    p.Start.Hour,
			StartMinute:  p.Start.Minute,
			EndHour:      p.End.Hour,
			EndMinute:    p.End.Minute,
			WorkMode:     string(p.Mode),
			MinSocOnGrid: p.MinSOC,
			FdSoc:        p.ForceDischargeSOC,
			FdPwr:        p.ForceDischargePower,
		}
		if p.MaxSOC != nil {
			g.MaxSoc = *p.MaxSOC
		}
		groups = append(groups, g)
	}

	req, err := f.newRequest(ctx, http.MethodPost, pathSchedulerSave, nil, map[string]interface{}{
		"deviceSN": deviceSN,
		"groups":   groups,
	})
	if err != nil {
		return err
	}

	if err := f.doRequest(req, nil); err != nil {
		return fmt.Errorf("scheduler save failed: %w", err)
	}
	log.Ctx(ctx).InfoContext(ctx, "schedule saved",
		slog.String("deviceSN", deviceSN),
		slog.Int("phases", len(groups)),
	)
	return nil
}
