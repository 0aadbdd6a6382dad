package commands

import (
	"errors"
	"fmt"
)

// ErrUserInput is matched by every error caused by what the user typed:
// missing or unconvertible arguments and quoting mistakes.
var ErrUserInput = errors.New("commands: bad user input")

// Check failures with a fixed meaning. Match them with errors.Is; match any
// check failure with errors.As and *CheckFailure.
var (
	ErrNotOwner        = &CheckFailure{Message: "You must be the owner to use this command"}
	ErrPrivateChatOnly = &CheckFailure{Message: "This command can only be used in private chats"}
	ErrGroupOnly       = &CheckFailure{Message: "This command can not be used in private chats"}
)

// ErrExpectedClosingQuote is returned by the Reader when input ends inside a
// quoted token.
var ErrExpectedClosingQuote = &ArgumentParsingError{Message: "Expected a closing quote"}

// CommandNotFoundError reports a message addressed to an unknown command.
type CommandNotFoundError struct {
	Name string
}

func (e *CommandNotFoundError) Error() string {
	return fmt.Sprintf("Command %q is not found", e.Name)
}

// CommandRegistrationError reports a name or alias that is already taken.
type CommandRegistrationError struct {
	Name    string
	IsAlias bool
}

func (e *CommandRegistrationError) Error() string {
	kind := "command"
	if e.IsAlias {
		kind = "alias"
	}
	return fmt.Sprintf("The %s %s is already an existing command or alias", kind, e.Name)
}

// MissingRequiredArgumentError reports a parameter without a default for
// which no token was left.
type MissingRequiredArgumentError struct {
	Param string
}

func (e *MissingRequiredArgumentError) Error() string {
	return fmt.Sprintf("'%s' is a required argument that is missing", e.Param)
}

// Is makes the error match ErrUserInput.
func (e *MissingRequiredArgumentError) Is(target error) bool {
	return target == ErrUserInput
}

// BadArgumentError reports a token that no converter accepted. Converter
// names the type, or the union of types, that was attempted.
type BadArgumentError struct {
	Arg       string
	Converter string
	Message   string
}

func (e *BadArgumentError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("Converting to %q failed for argument %q", e.Converter, e.Arg)
}

// Is makes the error match ErrUserInput.
func (e *BadArgumentError) Is(target error) bool {
	return target == ErrUserInput
}

// ArgumentParsingError reports malformed argument text.
type ArgumentParsingError struct {
	Message string
}

func (e *ArgumentParsingError) Error() string {
	return e.Message
}

// Is makes the error match ErrUserInput.
func (e *ArgumentParsingError) Is(target error) bool {
	return target == ErrUserInput
}

// CheckFailure reports a check that returned false or failed. Err holds the
// error a check returned, if any.
type CheckFailure struct {
	Message string
	Err     error
}

func (e *CheckFailure) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	return e.Message
}

func (e *CheckFailure) Unwrap() error {
	return e.Err
}

// CommandInvokeError wraps an error returned (or a panic raised) by a command
// callback.
type CommandInvokeError struct {
	Command string
	Err     error
}

func (e *CommandInvokeError) Error() string {
	return fmt.Sprintf("Command raised an exception: %v", e.Err)
}

func (e *CommandInvokeError) Unwrap() error {
	return e.Err
}

// PanicError carries a value recovered from a panicking callback or check.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}
