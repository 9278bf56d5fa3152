// Print a bcrypt hash for the portfolio password.
//
// Put the output in PORTFOLIO_PASSWORD_HASH to require the password.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const cost = 14

func hashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("the password must not be empty")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)

	if err != nil {
		return "", err
	}

	return string(hash), nil
}

func main() {
	var password string

	switch len(os.Args) {
	case 1:
		// Reading from stdin keeps the password out of the shell history.
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')

		if err != nil && line == "" {
			fmt.Fprintf(os.Stderr, "Usage: passwd [<password>] (or pipe the password in)\n")
			os.Exit(1)
		}

		password = strings.TrimRight(line, "\r\n")
	case 2:
		password = os.Args[1]
	default:
		fmt.Fprintf(os.Stderr, "Usage: passwd [<password>]\n")
		os.Exit(1)
	}

	hash, err := hashPassword(password)

	if err != nil {
		fmt.Fprintf(os.Stderr, "Password hashing error: %s\n", err)
		os.Exit(1)
	}

	fmt.Println(hash)
}
