package main

import (
	"fmt"
	"syscall"

	"golang.org/x/term"
)

// requestPassword prompts for a passphrase twice and enforces minimal
// strength.
func requestPassword() (string, error) {
	fmt.Println("IMPORTANT: Please ensure you back up your passphrase securely.")
	fmt.Println("If lost, you won't be able to recover the wallet key.")

	fmt.Print("Enter passphrase to encrypt wallet key: ")
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read passphrase: %w", err)
	}
	passphrase := string(bytePassword)

	fmt.Print("Confirm passphrase: ")
	byteConfirmation, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read confirmation passphrase: %w", err)
	}
	if passphrase != string(byteConfirmation) {
		return "", fmt.Errorf("passphrases do not match")
	}

	if len(passphrase) < 12 {
		return "", fmt.Errorf("passphrase too short (minimum 12 characters recommended)")
	}
	return passphrase, nil
}
