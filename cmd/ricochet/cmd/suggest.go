package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"ricochet.dev/ricochet/internal/rerrors"
	"ricochet.dev/ricochet/internal/store"
	"ricochet.dev/ricochet/internal/suggest"
)

func newSuggestCmd() *cobra.Command {
	var (
		paramName     string
		correlationID string
		recent        int
	)

	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Suggest where a stored payload might fire, given a context tag",
		RunE: func(cmd *cobra.Command, args []string) error {
			set := 0
			for _, v := range []bool{paramName != "", correlationID != "", recent > 0} {
				if v {
					set++
				}
			}
			if set != 1 {
				return rerrors.UsageError("suggest requires exactly one of --param, --correlation-id, or --recent")
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			s, err := store.New(cfg.Store.Path)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := context.Background()

			switch {
			case correlationID != "":
				inj, err := s.GetInjection(ctx, correlationID)
				if err != nil {
					return err
				}
				printSuggestion(inj.Token, inj.ParamName, inj.ContextTag)

			case paramName != "":
				injs, err := s.ListInjections(ctx, store.ListInjectionsFilter{})
				if err != nil {
					return err
				}
				matched := 0
				for _, inj := range injs {
					if inj.ParamName != paramName {
						continue
					}
					matched++
					printSuggestion(inj.Token, inj.ParamName, inj.ContextTag)
				}
				if matched == 0 {
					printWarning("no injections found for param %q", paramName)
				}

			default:
				injs, err := s.ListInjections(ctx, store.ListInjectionsFilter{Limit: recent})
				if err != nil {
					return err
				}
				if len(injs) == 0 {
					printWarning("no recent injections recorded")
				}
				for _, inj := range injs {
					printSuggestion(inj.Token, inj.ParamName, inj.ContextTag)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&paramName, "param", "", "suggest for every injection recorded against this parameter name")
	cmd.Flags().StringVar(&correlationID, "correlation-id", "", "suggest for a single injection by its token")
	cmd.Flags().IntVar(&recent, "recent", 0, "suggest for the N most recently recorded injections")
	return cmd
}

func printSuggestion(token, param, contextTag string) {
	printInfo("token=%s param=%s context=%s", token, param, contextTag)
	printSuccess("%s", suggest.ForContextTag(contextTag))
}
