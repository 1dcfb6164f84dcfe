package main

import (
	"fmt"

	"github.com/kr/pretty"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"armlift/internal/output"
	"armlift/internal/render"
)

func newLiftCmd(a *app) *cobra.Command {
	var (
		src      source
		asJSON   bool
		asPretty bool
		dot      bool
	)
	cmd := &cobra.Command{
		Use:   "lift",
		Short: "Translate one basic block and print its IL",
		Example: `  armlift lift --arch a64 --addr 0x1000 --hex "1f2003d5c0035fd6"
  armlift lift --elf app.so --sym main --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := a.load(&src)
			if err != nil {
				return err
			}
			tr := in.arch.Translator(a.cfg.LiftOptions(a.log))
			res, err := tr.TranslateBlock(in.code, in.addr)
			if err != nil {
				a.log.Error("lift failed", "addr", fmt.Sprintf("%#x", in.addr), "err", err)
				return errors.Wrapf(err, "lift %s", in.name)
			}
			a.log.Debug("lifted", "start", fmt.Sprintf("%#x", res.Start()), "length", res.Length(),
				"instructions", len(res.Entries()), "transfer", res.Successors().Kind())

			out := cmd.OutOrStdout()
			switch {
			case asJSON:
				if err := output.EncodeJSON(out, output.NewBlockReport(res)); err != nil {
					return errors.Wrap(err, "encode report")
				}
			case asPretty:
				pretty.Fprintf(out, "%# v\n", output.NewBlockReport(res))
			default:
				fmt.Fprint(out, render.Tree(res))
			}

			if dot {
				name := fmt.Sprintf("block_%x", res.Start())
				if err := output.WriteDOT(a.cfg.OutputDir, name, render.ILDOT(res, render.NASA)); err != nil {
					return err
				}
				a.log.Info("wrote DOT", "dir", a.cfg.OutputDir, "name", name+".dot")
			}
			return nil
		},
	}
	src.register(cmd)
	f := cmd.Flags()
	f.BoolVar(&asJSON, "json", false, "print a JSON report")
	f.BoolVar(&asPretty, "pretty", false, "print the report as a Go value")
	f.BoolVar(&dot, "dot", false, "write the instruction subgraphs as DOT to the output directory")
	cmd.MarkFlagsMutuallyExclusive("json", "pretty")
	return cmd
}
