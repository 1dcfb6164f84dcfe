package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"armlift/internal/disasm"
	"armlift/internal/output"
)

func newDisasmCmd(a *app) *cobra.Command {
	var (
		src      source
		maxSteps int
		write    bool
	)
	cmd := &cobra.Command{
		Use:   "disasm",
		Short: "Print a linear disassembly listing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := a.load(&src)
			if err != nil {
				return err
			}
			insts := disasm.Disassemble(in.code, in.arch.Decoder, disasm.Options{BaseAddr: in.addr, MaxSteps: maxSteps})
			lookup := disasm.PlaceholderLookup(map[uint64]string{in.addr: in.name})
			fmt.Fprint(cmd.OutOrStdout(), disasm.Format(insts, lookup, disasm.TargetAnnotator(lookup)))

			if write {
				if err := output.WriteASM(a.cfg.OutputDir, insts, lookup, disasm.TargetAnnotator(lookup)); err != nil {
					return err
				}
				a.log.Info("wrote listing", "dir", a.cfg.OutputDir, "instructions", len(insts))
			}
			return nil
		},
	}
	src.register(cmd)
	cmd.Flags().IntVar(&maxSteps, "max-steps", 0, "maximum instructions to decode (0 = all)")
	cmd.Flags().BoolVar(&write, "write", false, "also write asm.txt to the output directory")
	return cmd
}
