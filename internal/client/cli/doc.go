// Package cli is the interactive authkeeper command-line client.
//
// NewApp opens the local session database, restores the last session and
// connects to the server; App.Run then reads commands until "exit":
//
//	register   create an account and sign in
//	login      sign in with email and password
//	self       show the signed-in user's profile
//	refresh    rotate the token pair
//	logout     end the session on the server and locally
//	help, exit
//
// Passwords are read from the terminal without echo.
package cli
