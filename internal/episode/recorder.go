// Package episode tracks opportunity windows per signal class and scores
// them once the trend resolves.
//
// An episode opens when the state engine enters the class's state and
// closes when the trend either reaches the class's target or collapses to
// S0. Every window of an episode receives the episode's outcome; windows
// are never scored on their own.
package episode

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"trendloop/internal/config"
	"trendloop/internal/domain"
)

// Recorder maintains the in-flight episodes stored on each position.
type Recorder struct {
	cfg   config.EpisodeConfig
	log   zerolog.Logger
	newID func() string
}

// New creates a recorder.
func New(cfg config.EpisodeConfig, log zerolog.Logger) *Recorder {
	return &Recorder{
		cfg:   cfg,
		log:   log.With().Str("component", "episode").Logger(),
		newID: uuid.NewString,
	}
}

// Observation is one tick of input to the recorder.
type Observation struct {
	Output   domain.StateOutput
	Features domain.Features
	A        float64
	E        float64
	Scope    map[string]string // context recorded on episodes opened this tick
}

// Observe advances the position's episodes by one tick and returns the
// episodes closed on it. The position's history is mutated in place.
func (r *Recorder) Observe(pos *domain.Position, obs Observation) []domain.Episode {
	out := obs.Output
	if out.Missing {
		return nil
	}
	at := obs.Features.Timestamp
	var closed []domain.Episode

	switch out.State {
	case domain.StateS0:
		for _, class := range domain.EpisodeClasses {
			if ep := pos.History.OpenEpisode(class); ep != nil {
				closed = append(closed, r.close(pos, ep, false, at))
			}
		}
	case domain.StateS3:
		for _, class := range []domain.EpisodeClass{domain.EpisodeS1Entry, domain.EpisodeS2Retest} {
			if ep := pos.History.OpenEpisode(class); ep != nil {
				closed = append(closed, r.close(pos, ep, true, at))
			}
		}
		if ep := pos.History.OpenEpisode(domain.EpisodeS3Dip); ep != nil && r.dipTargetReached(ep, obs.Features) {
			closed = append(closed, r.close(pos, ep, true, at))
		}
	}

	if out.Transitioned() {
		if class, ok := domain.EpisodeClassFor(out.State); ok {
			if prev := pos.History.OpenEpisode(class); prev != nil {
				// re-entry without passing S0 or S3; the old attempt lapsed
				closed = append(closed, r.close(pos, prev, false, at))
			}
			r.open(pos, class, at, obs.Scope)
		}
	}

	for _, class := range domain.EpisodeClasses {
		if ep := pos.History.OpenEpisode(class); ep != nil {
			r.sample(ep, obs)
		}
	}
	return closed
}

// MarkEntered records that an entry of class was filled during its open
// episode. Returns false when no episode of that class is open.
func (r *Recorder) MarkEntered(pos *domain.Position, class domain.EpisodeClass) bool {
	ep := pos.History.OpenEpisode(class)
	if ep == nil {
		return false
	}
	ep.Entered = true
	return true
}

// Close force-closes the open episode of class. Closing an unknown episode
// is logged and ignored.
func (r *Recorder) Close(pos *domain.Position, class domain.EpisodeClass, targetReached bool, at time.Time) (domain.Episode, bool) {
	ep := pos.History.OpenEpisode(class)
	if ep == nil {
		r.log.Warn().
			Str("position", pos.Key.String()).
			Str("class", string(class)).
			Msg("close of unknown episode ignored")
		return domain.Episode{}, false
	}
	return r.close(pos, ep, targetReached, at), true
}

func (r *Recorder) open(pos *domain.Position, class domain.EpisodeClass, at time.Time, scope map[string]string) {
	if pos.History.Episodes == nil {
		pos.History.Episodes = make(map[domain.EpisodeClass]*domain.Episode)
	}
	ep := &domain.Episode{
		ID:          r.newID(),
		Class:       class,
		PositionKey: pos.Key,
		StartedAt:   at,
		Scope:       domain.CloneScope(scope),
	}
	pos.History.Episodes[class] = ep
	r.log.Debug().
		Str("position", pos.Key.String()).
		Str("class", string(class)).
		Str("episode_id", ep.ID).
		Msg("episode opened")
}

// close assigns the outcome, back-fills every window and detaches the
// episode from the position.
func (r *Recorder) close(pos *domain.Position, ep *domain.Episode, targetReached bool, at time.Time) domain.Episode {
	ep.TargetReached = targetReached
	ep.Outcome = domain.ClassifyOutcome(ep.Entered, targetReached)
	ep.ClosedAt = at
	for i := range ep.Windows {
		if ep.Windows[i].Open() {
			ep.Windows[i].ClosedAt = at
		}
		ep.Windows[i].Outcome = ep.Outcome
	}
	delete(pos.History.Episodes, ep.Class)

	r.log.Info().
		Str("position", pos.Key.String()).
		Str("class", string(ep.Class)).
		Str("episode_id", ep.ID).
		Str("outcome", string(ep.Outcome)).
		Int("windows", len(ep.Windows)).
		Msg("episode closed")
	return *ep.Clone()
}

func (r *Recorder) sample(ep *domain.Episode, obs Observation) {
	out := obs.Output
	f := obs.Features
	if out.State != ep.Class.State() {
		r.lapse(ep, f.Timestamp)
		return
	}

	if out.Scores.TS > ep.MaxTS {
		ep.MaxTS = out.Scores.TS
	}
	if out.Scores.DX > ep.MaxDX {
		ep.MaxDX = out.Scores.DX
	}
	if ep.StateBars == 0 || out.Scores.EDX < ep.MinEDX {
		ep.MinEDX = out.Scores.EDX
	}
	ep.StateBars++

	if !conditionHolds(ep.Class, out.Flags) {
		r.lapse(ep, f.Timestamp)
		return
	}

	n := len(ep.Windows)
	if n == 0 || !ep.Windows[n-1].Open() {
		ep.Windows = append(ep.Windows, domain.Window{OpenedAt: f.Timestamp})
		n++
	}
	w := &ep.Windows[n-1]
	if len(w.Samples) < r.cfg.MaxWindowSamples {
		w.Samples = append(w.Samples, domain.Sample{
			At:    f.Timestamp,
			Price: f.Price,
			ATR:   f.ATR,
			TS:    out.Scores.TS,
			DX:    out.Scores.DX,
			EDX:   out.Scores.EDX,
			A:     obs.A,
			E:     obs.E,
		})
	}
}

func (r *Recorder) lapse(ep *domain.Episode, at time.Time) {
	if n := len(ep.Windows); n > 0 && ep.Windows[n-1].Open() {
		ep.Windows[n-1].ClosedAt = at
	}
}

// dipTargetReached reports whether price cleared the first window sample
// by the configured ATR multiple.
func (r *Recorder) dipTargetReached(ep *domain.Episode, f domain.Features) bool {
	if len(ep.Windows) == 0 || len(ep.Windows[0].Samples) == 0 {
		return false
	}
	first := ep.Windows[0].Samples[0]
	return f.Price >= first.Price+r.cfg.S3TargetATR*first.ATR
}

func conditionHolds(class domain.EpisodeClass, fl domain.Flags) bool {
	switch class {
	case domain.EpisodeS1Entry:
		return fl.BuySignal
	case domain.EpisodeS3Dip:
		return fl.BuyFlag || fl.FirstDipBuyFlag
	default:
		return fl.BuyFlag
	}
}
