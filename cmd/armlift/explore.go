package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	latticerender "github.com/zboralski/lattice/render"

	"armlift/internal/callgraph"
	"armlift/internal/explore"
	"armlift/internal/output"
	"armlift/internal/render"
)

func newExploreCmd(a *app) *cobra.Command {
	var (
		src       source
		entry     string
		maxBlocks int
		workers   int
	)
	cmd := &cobra.Command{
		Use:   "explore",
		Short: "Follow static successors from an entry and write the block graph",
		Long: `Translate blocks breadth-first from the entry point, following static
successors inside the loaded region. Writes blocks.json, blocks.dot (IL
blocks), cfg.dot and callgraph.dot to the output directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := a.load(&src)
			if err != nil {
				return err
			}
			start := in.addr
			if entry != "" {
				if start, err = parseAddr(entry); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("max-blocks") {
				a.cfg.MaxBlocks = maxBlocks
			}
			if cmd.Flags().Changed("workers") {
				a.cfg.Workers = workers
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}

			tr := in.arch.Translator(a.cfg.LiftOptions(a.log))
			mem := explore.Memory{Base: in.regionBase, Data: in.region}
			g, err := explore.Explore(cmd.Context(), tr, mem, start, a.cfg.ExploreOptions(a.log))
			if err != nil {
				return errors.Wrapf(err, "explore %s", in.name)
			}
			if g.Truncated {
				a.log.Warn("block budget reached", "max", a.cfg.MaxBlocks)
			}

			dir := a.cfg.OutputDir
			if err := os.MkdirAll(dir, 0755); err != nil {
				return errors.Wrap(err, "create output directory")
			}
			if err := output.WriteBlocksJSON(dir, output.NewExploreReport(in.arch.Name, g)); err != nil {
				return err
			}
			if err := output.WriteDOT(dir, "blocks", render.CFGDOT(g, in.name, render.NASA)); err != nil {
				return err
			}
			cfg := callgraph.BuildCFG(in.name, g)
			if err := output.WriteDOT(dir, "cfg", latticerender.DOTCFG(cfg, in.name)); err != nil {
				return err
			}
			cg := callgraph.BuildCallGraph(in.name, g)
			if err := output.WriteDOT(dir, "callgraph", latticerender.DOT(cg, in.name)); err != nil {
				return err
			}

			a.log.Info("explored", "entry", fmt.Sprintf("%#x", start), "blocks", len(g.Blocks),
				"exits", len(g.Exits), "calls", len(cg.Edges), "dir", dir)
			return nil
		},
	}
	src.register(cmd)
	f := cmd.Flags()
	f.StringVar(&entry, "entry", "", "entry address (default: the symbol or --addr)")
	f.IntVar(&maxBlocks, "max-blocks", 0, "stop after this many blocks (default from config)")
	f.IntVar(&workers, "workers", 0, "blocks translated concurrently (default from config)")
	return cmd
}
