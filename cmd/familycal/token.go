package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hrygo/familycal/server/auth"
)

var (
	tokenUserID   int32
	tokenFamilyID int32
	tokenTTL      time.Duration

	tokenCmd = &cobra.Command{
		Use:   "token",
		Short: "Issue an access token for an actor",
		RunE: func(cmd *cobra.Command, _ []string) error {
			instanceProfile := loadProfile()
			if instanceProfile.Secret == "" {
				return fmt.Errorf("a secret is required to sign tokens")
			}
			actor := auth.Actor{UserID: tokenUserID}
			if tokenFamilyID != 0 {
				actor.FamilyID = &tokenFamilyID
			}
			token, err := auth.GenerateAccessToken(actor, time.Now().Add(tokenTTL), []byte(instanceProfile.Secret))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
)

func init() {
	tokenCmd.Flags().Int32Var(&tokenUserID, "user", 1, "user id of the actor")
	tokenCmd.Flags().Int32Var(&tokenFamilyID, "family", 0, "family id; events are shared when set")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
}
