package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/notesync/core/internal/tokenstore"
)

var (
	loginUserID       string
	loginDeviceID     string
	loginAccessToken  string
	loginRefreshToken string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store a signed-in device's tokens as the current user",
	RunE:  runLogin,
}

func init() {
	loginCmd.Flags().StringVar(&loginUserID, "user-id", "", "authenticated user id (required)")
	loginCmd.Flags().StringVar(&loginDeviceID, "device-id", "", "device id (required)")
	loginCmd.Flags().StringVar(&loginAccessToken, "access-token", "", "access token issued by the auth gateway (required)")
	loginCmd.Flags().StringVar(&loginRefreshToken, "refresh-token", "", "refresh token issued by the auth gateway")
	loginCmd.MarkFlagRequired("user-id")
	loginCmd.MarkFlagRequired("device-id")
	loginCmd.MarkFlagRequired("access-token")
}

func runLogin(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	db, closeDB, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	store := tokenstore.New(db, appSalt)
	if err := store.Save(ctx, loginDeviceID, loginUserID, loginAccessToken, loginRefreshToken, true); err != nil {
		return fmt.Errorf("save tokens: %w", err)
	}

	fmt.Printf("signed in as %s on device %s\n", loginUserID, loginDeviceID)
	return nil
}
