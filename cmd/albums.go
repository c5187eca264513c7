package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/pxm/internal/shared"
	"github.com/urfave/cli/v3"
)

// AlbumsList lists albums on Google Photos that pxm can see (those it created).
func (r *Runner) AlbumsList(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	dest, err := r.destinationService(config)
	if err != nil {
		return err
	}

	r.logger.Info("listing destination albums")
	albums, err := dest.ListAlbums(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrDestinationRequest, err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(albums, cmd.Bool("pretty"))
	}

	r.writePlain("Found %d albums:\n\n", len(albums))
	for i, a := range albums {
		r.writePlain("%d. %s\n", i+1, a.Title)
		r.writePlain("   ID: %s\n", a.ID)
	}
	return nil
}
