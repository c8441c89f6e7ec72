package cli

import (
	"log"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/weftworks/weft/internal/api"
	"github.com/weftworks/weft/internal/engine"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the weft HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, cfg, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		srv := api.NewServer(engine.New(s))
		log.Printf("weft listening on %s (store driver %s)", cfg.Server.Listen, cfg.Store.Driver)
		return http.ListenAndServe(cfg.Server.Listen, srv.Router(cfg.Server.AllowedOrigins))
	},
}
