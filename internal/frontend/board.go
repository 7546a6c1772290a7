package frontend

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/janpfeifer/GoOracle/internal/game"
	"github.com/maxence-charriere/go-app/v10/pkg/app"
	"k8s.io/klog/v2"
)

// Board renders a table: the 13 piles with their ordered groups, and the result when the game is
// over. In manual games it forwards the clicks on allowed groups as reveal or place commands.
type Board struct {
	app.Compo
	TableID string
	Error   string

	// Oracle is the message shown above the clock: one per phase, rotated every
	// game.PhraseInterval while playing.
	Oracle      string
	oraclePhase game.Phase
	phraseTimer *time.Timer
	rng         game.RNG

	onUpdate func()
}

func (b *Board) OnAppUpdate(ctx app.Context) {
	klog.Infof("Board component: App update available, not reloading not to interrupt the game...")
}

func (b *Board) OnMount(ctx app.Context) {
	klog.V(1).Infof("Board component: OnMount called")
	b.rng = game.SystemRNG()
	b.onUpdate = func() {
		ctx.Dispatch(func(ctx app.Context) {
			b.Error = State.Error
			b.updateOracle(ctx)
		})
	}
	State.Listeners["board"] = b.onUpdate
	b.updateOracle(ctx)
}

func (b *Board) OnDismount() {
	klog.V(1).Infof("Board component: OnDismount called")
	delete(State.Listeners, "board")
	b.stopPhrases()
}

// updateOracle picks a new oracle message when the phase changes.
func (b *Board) updateOracle(ctx app.Context) {
	snap := State.Snapshot
	if snap == nil || snap.Phase == b.oraclePhase {
		return
	}
	b.oraclePhase = snap.Phase
	b.stopPhrases()
	if snap.Phase == game.PhaseFinished {
		b.Oracle = ""
		return
	}
	b.Oracle = game.PhaseMessage(snap.Phase, b.rng)
	if snap.Phase == game.PhasePlaying {
		b.schedulePhrase(ctx)
	}
}

func (b *Board) schedulePhrase(ctx app.Context) {
	b.phraseTimer = time.AfterFunc(game.PhraseInterval, func() {
		ctx.Dispatch(func(ctx app.Context) {
			if b.oraclePhase != game.PhasePlaying {
				return
			}
			b.Oracle = game.PhaseMessage(game.PhasePlaying, b.rng)
			b.schedulePhrase(ctx)
		})
	})
}

func (b *Board) stopPhrases() {
	if b.phraseTimer != nil {
		b.phraseTimer.Stop()
		b.phraseTimer = nil
	}
}

func (b *Board) OnNav(ctx app.Context) {
	if app.IsServer {
		return
	}
	path := app.Window().URL().Path
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	klog.V(1).Infof("Board component: Navigated to %s, parts: %v", path, parts)
	if len(parts) >= 2 && parts[0] == "table" {
		b.TableID = parts[1]
	}
	if b.TableID == "" {
		b.Error = "No table ID provided"
		return
	}
	if State.Conn == nil || State.TableID != b.TableID {
		if err := State.ConnectJoin(b.TableID); err != nil {
			b.Error = fmt.Sprintf("Failed to connect to table: %v", err)
			klog.Errorf("Board component: Error connecting: %v", err)
		}
	}
}

func (b *Board) onGroupClick(group int) app.EventHandler {
	return func(ctx app.Context, e app.Event) {
		e.PreventDefault()
		snap := State.Snapshot
		if snap == nil || snap.Manual == nil || !slices.Contains(snap.Manual.Allowed, group) {
			return
		}
		if snap.Manual.WaitingForPlacement {
			State.SendPlace(group)
		} else {
			State.SendReveal(group)
		}
	}
}

func (b *Board) onToggleSpeed(ctx app.Context, e app.Event) {
	e.PreventDefault()
	if State.Snapshot == nil {
		return
	}
	speed := game.SpeedFast
	if State.Snapshot.Speed == game.SpeedFast {
		speed = game.SpeedNormal
	}
	State.SendSpeed(speed)
}

func (b *Board) onRestart(mode game.Mode, question string) app.EventHandler {
	return func(ctx app.Context, e app.Event) {
		e.PreventDefault()
		State.SendStart(mode, question)
	}
}

func (b *Board) onHome(ctx app.Context, e app.Event) {
	e.PreventDefault()
	State.Error = ""
	ctx.Navigate("/")
}

// cardLabel is the text of a card: its rank and suit when face up, a card back otherwise.
func cardLabel(c game.Card) string {
	if !c.FaceUp {
		return "🂠"
	}
	return c.Rank.Display() + c.Suit.Symbol()
}

func cardClass(c game.Card) string {
	if !c.FaceUp {
		return "card back"
	}
	if c.Suit == game.Hearts || c.Suit == game.Diamonds {
		return "card red"
	}
	return "card black"
}

func (b *Board) renderGroup(snap *game.Snapshot, group int) app.UI {
	classes := []string{"pile"}
	if group == snap.CurrentGroup && snap.Phase == game.PhasePlaying {
		classes = append(classes, "current")
	}
	if slices.Contains(snap.CompletedGroups, group) {
		classes = append(classes, "completed")
	}
	allowed := snap.Manual != nil && slices.Contains(snap.Manual.Allowed, group)
	if allowed {
		classes = append(classes, "allowed")
	}
	if m := State.LastMove; m != nil && m.To == group {
		classes = append(classes, "last-move")
	}

	pile := snap.Groups[group]
	var top app.UI = app.Span().Class("card empty").Text("·")
	if len(pile) > 0 {
		top = app.Span().Class(cardClass(pile[len(pile)-1])).Text(cardLabel(pile[len(pile)-1]))
	}

	ordered := make([]app.UI, 0, len(snap.Ordered[group]))
	for _, c := range snap.Ordered[group] {
		ordered = append(ordered, app.Span().Class(cardClass(c)).Text(cardLabel(c)))
	}

	div := app.Div().
		Class(strings.Join(classes, " ")).
		Style("grid-area", fmt.Sprintf("g%d", group)).
		Body(
			app.Small().Text(fmt.Sprintf("%s · %d", game.ExpectedRank(group).Display(), len(pile))),
			top,
			app.Div().Class("ordered").Body(ordered...),
		)
	if allowed {
		div = div.OnClick(b.onGroupClick(group))
	}
	return div
}

func (b *Board) renderCenter(snap *game.Snapshot) app.UI {
	var revealed app.UI = app.Text("")
	if snap.Revealed != nil {
		revealed = app.Span().Class(cardClass(*snap.Revealed)).Text(cardLabel(*snap.Revealed))
	}

	var orderedArea app.UI = app.Text("")
	if snap.Manual != nil && slices.Contains(snap.Manual.Allowed, game.OrderedArea) {
		orderedArea = app.Button().
			Class("outline").
			Text("Put it home").
			OnClick(b.onGroupClick(game.OrderedArea))
	}

	var hint string
	switch {
	case snap.Manual != nil && snap.Manual.WaitingForReveal:
		hint = "Reveal the top card of the highlighted pile."
	case snap.Manual != nil && snap.Manual.WaitingForPlacement:
		hint = "Move the revealed card to its pile."
	case snap.Phase == game.PhaseChecking:
		hint = "The oracle is contemplating..."
	}

	return app.Div().Class("center").Style("grid-area", "center").Body(
		app.P().Text(fmt.Sprintf("Step %d · %d/%d ranks gathered", snap.Step, snap.OrderedGroups, game.NumGroups)),
		revealed,
		app.P().Text(hint),
		orderedArea,
	)
}

func (b *Board) renderResult(r *game.Result) app.UI {
	title := "The oracle says no"
	if r.Success {
		title = "The oracle says yes"
	}
	var question app.UI = app.Text("")
	if r.Question != "" {
		question = app.P().Body(app.Strong().Text(r.Question))
	}
	return app.Article().Class("result").Body(
		app.Header().Body(app.H3().Text(title)),
		question,
		app.P().Body(app.Em().Text(r.Message)),
		app.P().Text(r.Detail),
		app.P().Text(fmt.Sprintf("%d steps, %d complete groups.", r.Steps, r.CompletedGroups)),
		app.Footer().Body(
			app.Div().Class("grid").Body(
				app.Button().Text("Ask again").OnClick(b.onRestart(State.Snapshot.Mode, r.Question)),
				app.Button().Class("secondary").Text("Home").OnClick(b.onHome),
			),
		),
	)
}

func (b *Board) Render() app.UI {
	if b.Error != "" && State.Snapshot == nil {
		return app.Main().Class("container").Body(
			&TopBar{},
			app.Article().Body(
				app.H2().Text("Table Closed"),
				app.P().Style("color", "red").Text(b.Error),
				app.A().Href("/").OnClick(b.onHome).Text("Return to Home"),
			),
		)
	}

	snap := State.Snapshot
	if snap == nil {
		return app.Main().Class("container").Body(
			&TopBar{},
			app.Div().Aria("busy", "true").Text("Connecting to table..."),
		)
	}

	groups := make([]app.UI, 0, game.NumGroups+1)
	for g := range game.NumGroups {
		groups = append(groups, b.renderGroup(snap, g))
	}
	groups = append(groups, b.renderCenter(snap))

	var speedToggle app.UI = app.Text("")
	if snap.Mode == game.ModeAuto {
		speedToggle = app.Button().
			Class("outline secondary").
			Text(snap.Speed.Label()).
			OnClick(b.onToggleSpeed)
	}

	var result app.UI = app.Text("")
	if r := State.Result; r != nil {
		result = b.renderResult(r)
	} else if snap.Result != nil {
		result = b.renderResult(snap.Result)
	}

	var errorMsg app.UI = app.Text("")
	if b.Error != "" {
		errorMsg = app.P().Style("color", "red").Text(b.Error)
	}

	var question app.UI = app.Text("")
	if snap.Question != "" {
		question = app.H3().Class("question").Text(snap.Question)
	}
	var oracle app.UI = app.Text("")
	if b.Oracle != "" {
		oracle = app.P().Class("oracle-message").Text("🔮 " + b.Oracle)
	}

	return app.Main().Class("container").Body(
		&TopBar{},
		app.Div().Class("board-header").Body(
			app.Span().Text(fmt.Sprintf("%s game · %s", snap.Mode, snap.Phase)),
			speedToggle,
		),
		question,
		oracle,
		errorMsg,
		app.Div().Class("clock").Body(groups...),
		result,
	)
}
