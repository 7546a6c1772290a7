package frontend

import (
	"fmt"
	"strings"

	"github.com/janpfeifer/GoOracle/internal/game"
	"github.com/maxence-charriere/go-app/v10/pkg/app"
	"k8s.io/klog/v2"
)

// Home is the landing page component: it starts a new game in the chosen mode.
type Home struct {
	app.Compo
	Error      string
	Question   string
	connecting bool
}

func (h *Home) OnMount(ctx app.Context) {
	klog.V(1).Infof("Home: OnMount called")
	State.Listeners["home"] = func() {
		ctx.Dispatch(func(ctx app.Context) {
			if !h.connecting {
				return
			}
			if State.Error != "" {
				h.Error = State.Error
				h.connecting = false
				return
			}
			if State.TableID != "" {
				h.connecting = false
				ctx.Navigate("/table/" + State.TableID)
			}
		})
	}
}

func (h *Home) OnDismount() {
	delete(State.Listeners, "home")
}

func (h *Home) OnNav(ctx app.Context) {
	klog.V(1).Infof("Home: OnNav called, Path=%s", app.Window().URL().Path)
	// Coming back home leaves the previous table.
	State.Leave()
}

func (h *Home) onStart(mode game.Mode) app.EventHandler {
	return func(ctx app.Context, e app.Event) {
		e.PreventDefault()
		question, err := game.ParseQuestion(h.Question)
		if err != nil || question == "" {
			h.Error = "Ask the oracle a question first."
			return
		}
		h.Error = ""
		h.connecting = true
		if err := State.ConnectStart(mode, question); err != nil {
			h.connecting = false
			h.Error = fmt.Sprintf("Failed to start a game: %v", err)
		}
	}
}

func (h *Home) onQuestionChange(ctx app.Context, e app.Event) {
	h.Question = ctx.JSSrc().Get("value").String()
}

func (h *Home) OnAppUpdate(ctx app.Context) {
	klog.Infof("Home component: App update available, reloading...")
	ctx.Reload()
}

func (h *Home) Render() app.UI {
	var errorMsg app.UI = app.Text("")
	if h.Error != "" {
		errorMsg = app.P().Style("color", "red").Text(h.Error)
	}

	asked := strings.TrimSpace(h.Question) != ""
	return app.Main().Class("container").Body(
		&TopBar{},
		app.Article().Body(
			app.Header().Body(
				app.H2().Text("Consult the Oracle"),
			),
			app.P().Text("The deck is shuffled and dealt in thirteen piles around the clock. "+
				"Each revealed card travels to the pile of its rank. "+
				"If all thirteen ranks are gathered, the answer is yes."),
			app.Input().
				Type("text").
				Placeholder("What question do you carry in your heart?").
				MaxLength(game.MaxQuestionLength).
				Value(h.Question).
				AutoFocus(true).
				OnInput(h.onQuestionChange),
			errorMsg,
			app.Div().Class("grid").Body(
				app.Button().
					Text("Let the oracle play").
					Aria("busy", fmt.Sprint(h.connecting)).
					Disabled(h.connecting || !asked).
					OnClick(h.onStart(game.ModeAuto)),
				app.Button().
					Class("secondary").
					Text("Turn the cards myself").
					Disabled(h.connecting || !asked).
					OnClick(h.onStart(game.ModeManual)),
			),
		),
	)
}
