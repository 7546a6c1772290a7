package frontend

import "github.com/maxence-charriere/go-app/v10/pkg/app"

// RegisterRoutes declares the pages: the home page, where a question is asked, and one board per
// table. Both the server (to prerender) and the wasm client call it.
func RegisterRoutes() {
	app.Route("/", func() app.Composer { return &Home{} })
	app.RouteWithRegexp("^/table/.*", func() app.Composer { return &Board{} })
}
