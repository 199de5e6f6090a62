package search

import "fmt"

// UnknownCollectionError means the model proposed a collection that does
// not exist. Recoverable: the user can select the collection manually.
type UnknownCollectionError struct {
	Candidate string
	Reply     string // raw model reply, kept for diagnosis
}

func (e *UnknownCollectionError) Error() string {
	return fmt.Sprintf("the model proposed collection '%s' but it does not exist.\n\nModel reply:\n%s\n\nYou can select the collection manually.",
		e.Candidate, e.Reply)
}

// NoFilterReturnedError means nothing extractable came back from the
// filter-generation call.
type NoFilterReturnedError struct {
	Reply string
}

func (e *NoFilterReturnedError) Error() string {
	return fmt.Sprintf("the model did not return a usable filter.\n\nReply received:\n%s", e.Reply)
}

// InvalidFilterError means the extracted candidate failed validation.
// The candidate and the validator's reason are carried so a human can
// correct the expression.
type InvalidFilterError struct {
	Candidate string
	Reason    string
}

func (e *InvalidFilterError) Error() string {
	return fmt.Sprintf("the filter proposed by the model is not valid:\n%s\n\nProposed filter:\n%s", e.Reason, e.Candidate)
}

// PreconditionError means a results-dependent action ran before a search did.
type PreconditionError struct {
	Action string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("cannot %s: run a search first", e.Action)
}
