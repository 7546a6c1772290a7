// Command wasm is the browser client, built with GOOS=js GOARCH=wasm into web/app.wasm.
package main

import (
	"flag"
	"os"

	"github.com/janpfeifer/GoOracle/internal/frontend"
	"github.com/janpfeifer/GoOracle/internal/game"
	"github.com/maxence-charriere/go-app/v10/pkg/app"
	"k8s.io/klog/v2"
)

func main() {
	// The browser console is the only log sink.
	klogFlags := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(klogFlags)
	_ = klogFlags.Set("logtostderr", "true")
	klog.SetOutput(os.Stderr)
	klog.Infof("GoOracle client %s starting", game.Version)

	frontend.RegisterRoutes()
	frontend.InitState()
	app.RunWhenOnBrowser()
}
