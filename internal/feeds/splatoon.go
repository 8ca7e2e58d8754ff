// internal/feeds/splatoon.go

package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"
)

const (
	SplatoonSchedulesURL = "https://splatoon3.ink/data/schedules.json"
	SplatoonLocaleURL    = "https://splatoon3.ink/data/locale/ko-KR.json"

	rotationsPerMode = 2
	eventPeriods     = 3
)

// BattleKind distinguishes the PvP schedules.
type BattleKind string

const (
	BattleRegular   BattleKind = "regular"
	BattleChallenge BattleKind = "challenge"
	BattleOpen      BattleKind = "open"
)

// Stage is a map with its localized name.
type Stage struct {
	Name  string
	Image string
}

// Rotation is one time slot of a PvP mode.
type Rotation struct {
	Start  time.Time
	End    time.Time
	Rule   string
	Stages []Stage
	Fest   bool
}

// Battle groups the upcoming rotations of one PvP mode.
type Battle struct {
	Kind      BattleKind
	Rotations []Rotation
}

// SalmonRun is one co-op shift.
type SalmonRun struct {
	Start   time.Time
	End     time.Time
	Stage   Stage
	Weapons []string
}

// Period is a time window of an event match.
type Period struct {
	Start time.Time
	End   time.Time
}

// Event is a challenge (league) event.
type Event struct {
	Name       string
	Regulation string
	Rule       string
	Stages     []string
	Periods    []Period
}

// Schedule is the localized, trimmed rotation data.
type Schedule struct {
	Battles []Battle
	Salmon  []SalmonRun
	Events  []Event
}

// Empty reports whether nothing could be extracted.
func (s *Schedule) Empty() bool {
	return len(s.Battles) == 0 && len(s.Salmon) == 0 && len(s.Events) == 0
}

// SplatoonSource reads splatoon3.ink.
type SplatoonSource struct {
	SchedulesURL string
	LocaleURL    string

	client *http.Client
	now    func() time.Time
}

func NewSplatoonSource() *SplatoonSource {
	return &SplatoonSource{
		SchedulesURL: SplatoonSchedulesURL,
		LocaleURL:    SplatoonLocaleURL,
		client:       &http.Client{Timeout: defaultFetchTimeout},
		now:          time.Now,
	}
}

// Fetch downloads both documents concurrently and builds the schedule.
func (s *SplatoonSource) Fetch(ctx context.Context) (*Schedule, error) {
	var schedules, locale []byte

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		schedules, err = s.get(gctx, s.SchedulesURL)
		return err
	})
	g.Go(func() error {
		var err error
		locale, err = s.get(gctx, s.LocaleURL)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetch splatoon data: %w", err)
	}

	var doc schedulesDoc
	if err := json.Unmarshal(schedules, &doc); err != nil {
		return nil, fmt.Errorf("decode splatoon schedules: %w", err)
	}

	schedule := buildSchedule(&doc, localizer(locale), s.now())
	if schedule.Empty() {
		return nil, fmt.Errorf("splatoon schedules contained no rotations")
	}
	log.Info("Splatoon schedule fetched", "battles", len(schedule.Battles), "salmon", len(schedule.Salmon), "events", len(schedule.Events))
	return schedule, nil
}

func (s *SplatoonSource) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error making request to %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned status %d", url, resp.StatusCode)
	}
	return body, nil
}

type idRef struct {
	ID string `json:"id"`
}

type vsStage struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Image struct {
		URL string `json:"url"`
	} `json:"image"`
}

type vsSetting struct {
	VsStages    []vsStage `json:"vsStages"`
	VsRule      idRef     `json:"vsRule"`
	BankaraMode string    `json:"bankaraMode"`
	Mode        string    `json:"mode"`
}

type vsNode struct {
	StartTime            time.Time       `json:"startTime"`
	EndTime              time.Time       `json:"endTime"`
	RegularMatchSetting  *vsSetting      `json:"regularMatchSetting"`
	BankaraMatchSettings []*vsSetting    `json:"bankaraMatchSettings"`
	FestMatchSetting     json.RawMessage `json:"festMatchSetting"`
}

type coopNode struct {
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	Setting   *struct {
		CoopStage struct {
			ID             string `json:"id"`
			Name           string `json:"name"`
			ThumbnailImage struct {
				URL string `json:"url"`
			} `json:"thumbnailImage"`
		} `json:"coopStage"`
		Weapons []struct {
			Name string `json:"name"`
			ID   string `json:"__splatoon3ink_id"`
		} `json:"weapons"`
	} `json:"setting"`
}

type eventNode struct {
	LeagueMatchSetting *struct {
		LeagueMatchEvent idRef     `json:"leagueMatchEvent"`
		VsStages         []vsStage `json:"vsStages"`
		VsRule           idRef     `json:"vsRule"`
	} `json:"leagueMatchSetting"`
	TimePeriods []struct {
		StartTime time.Time `json:"startTime"`
		EndTime   time.Time `json:"endTime"`
	} `json:"timePeriods"`
}

type schedulesDoc struct {
	Data struct {
		RegularSchedules struct {
			Nodes []vsNode `json:"nodes"`
		} `json:"regularSchedules"`
		BankaraSchedules struct {
			Nodes []vsNode `json:"nodes"`
		} `json:"bankaraSchedules"`
		CoopGroupingSchedule struct {
			RegularSchedules struct {
				Nodes []coopNode `json:"nodes"`
			} `json:"regularSchedules"`
		} `json:"coopGroupingSchedule"`
		EventSchedules struct {
			Nodes []eventNode `json:"nodes"`
		} `json:"eventSchedules"`
	} `json:"data"`
}

type localeLookup func(section, id, field, fallback string) string

// localizer resolves names from the ko-KR locale document, which maps
// section -> id -> {name, desc, regulation}.
func localizer(locale []byte) localeLookup {
	return func(section, id, field, fallback string) string {
		if id == "" {
			return fallback
		}
		v := gjson.GetBytes(locale, section+"."+escapePath(id)+"."+field)
		if !v.Exists() || v.String() == "" {
			return fallback
		}
		return v.String()
	}
}

func escapePath(s string) string {
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(`.*?|#@!=<>%\`, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func buildSchedule(doc *schedulesDoc, name localeLookup, now time.Time) *Schedule {
	schedule := &Schedule{}

	// Anarchy battles carry two settings per slot: challenge then open.
	for idx, kind := range []BattleKind{BattleChallenge, BattleOpen} {
		battle := Battle{Kind: kind}
		for _, node := range upcoming(doc.Data.BankaraSchedules.Nodes, now) {
			if idx >= len(node.BankaraMatchSettings) || node.BankaraMatchSettings[idx] == nil {
				continue
			}
			setting := node.BankaraMatchSettings[idx]
			switch setting.BankaraMode + setting.Mode {
			case "CHALLENGE":
				battle.Kind = BattleChallenge
			case "OPEN":
				battle.Kind = BattleOpen
			}
			battle.Rotations = append(battle.Rotations, rotation(node, setting, name))
		}
		if len(battle.Rotations) > 0 {
			schedule.Battles = append(schedule.Battles, battle)
		}
	}

	regular := Battle{Kind: BattleRegular}
	for _, node := range upcoming(doc.Data.RegularSchedules.Nodes, now) {
		if node.RegularMatchSetting == nil {
			continue
		}
		regular.Rotations = append(regular.Rotations, rotation(node, node.RegularMatchSetting, name))
	}
	if len(regular.Rotations) > 0 {
		schedule.Battles = append(schedule.Battles, regular)
	}

	for _, node := range doc.Data.CoopGroupingSchedule.RegularSchedules.Nodes {
		if len(schedule.Salmon) == rotationsPerMode {
			break
		}
		if node.Setting == nil || !node.EndTime.After(now) {
			continue
		}
		run := SalmonRun{
			Start: node.StartTime,
			End:   node.EndTime,
			Stage: Stage{
				Name:  name("stages", node.Setting.CoopStage.ID, "name", node.Setting.CoopStage.Name),
				Image: node.Setting.CoopStage.ThumbnailImage.URL,
			},
		}
		for _, w := range node.Setting.Weapons {
			run.Weapons = append(run.Weapons, name("weapons", w.ID, "name", w.Name))
		}
		schedule.Salmon = append(schedule.Salmon, run)
	}

	for _, node := range doc.Data.EventSchedules.Nodes {
		if len(schedule.Events) == rotationsPerMode {
			break
		}
		setting := node.LeagueMatchSetting
		if setting == nil || setting.LeagueMatchEvent.ID == "" {
			continue
		}
		ev := Event{
			Name:       name("events", setting.LeagueMatchEvent.ID, "name", "알 수 없는 이벤트"),
			Regulation: HTMLToMarkdown(name("events", setting.LeagueMatchEvent.ID, "regulation", "")),
			Rule:       name("rules", setting.VsRule.ID, "name", "알 수 없는 규칙"),
		}
		for _, st := range setting.VsStages {
			ev.Stages = append(ev.Stages, name("stages", st.ID, "name", st.Name))
		}
		for _, tp := range node.TimePeriods {
			if len(ev.Periods) == eventPeriods {
				break
			}
			ev.Periods = append(ev.Periods, Period{Start: tp.StartTime, End: tp.EndTime})
		}
		schedule.Events = append(schedule.Events, ev)
	}

	return schedule
}

// upcoming drops finished slots and keeps the current and next one.
func upcoming(nodes []vsNode, now time.Time) []vsNode {
	var out []vsNode
	for _, node := range nodes {
		if !node.EndTime.After(now) {
			continue
		}
		out = append(out, node)
		if len(out) == rotationsPerMode {
			break
		}
	}
	return out
}

func rotation(node vsNode, setting *vsSetting, name localeLookup) Rotation {
	r := Rotation{
		Start: node.StartTime,
		End:   node.EndTime,
		Rule:  name("rules", setting.VsRule.ID, "name", "알 수 없는 규칙"),
		Fest:  len(node.FestMatchSetting) > 0 && string(node.FestMatchSetting) != "null",
	}
	for _, st := range setting.VsStages {
		r.Stages = append(r.Stages, Stage{
			Name:  name("stages", st.ID, "name", st.Name),
			Image: st.Image.URL,
		})
	}
	return r
}
