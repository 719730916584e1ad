package errors

import (
	"errors"
	"reflect"
	"testing"
)

func TestCast(t *testing.T) {
	type args struct {
		err error
	}
	tests := []struct {
		name   string
		args   args
		want   Error
		wantOK bool
	}{
		{
			name: "with rich error",
			args: args{
				err: Error{
					Code:    ErrBadRequest,
					Kind:    KindSequenceStale,
					Err:     nil,
					Message: "this was a bad request",
				},
			},
			want: Error{
				Code:    ErrBadRequest,
				Kind:    KindSequenceStale,
				Err:     nil,
				Message: "this was a bad request",
			},
			wantOK: true,
		},
		{
			name: "with rich error and original error",
			args: args{
				err: Error{
					Code:    ErrBadRequest,
					Err:     errors.New("i am an error"),
					Message: "this was a bad request",
				},
			},
			want: Error{
				Code:    ErrBadRequest,
				Err:     errors.New("i am an error"),
				Message: "this was a bad request",
			},
			wantOK: true,
		},
		{
			name: "with nil error",
			args: args{
				err: nil,
			},
			want: Error{
				Code:    ErrUnexpected,
				Kind:    KindUnknown,
				Err:     nil,
				Message: "unknown operation",
				Details: make(Details),
			},
			wantOK: false,
		},
		{
			name: "with simple error",
			args: args{
				err: errors.New("i am an error"),
			},
			want: Error{
				Code:    ErrUnexpected,
				Kind:    KindUnknown,
				Err:     errors.New("i am an error"),
				Message: "unknown operation",
				Details: make(Details),
			},
			wantOK: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got, ok := Cast(tt.args.err); !reflect.DeepEqual(got, tt.want) || ok != tt.wantOK {
				t.Errorf("Cast() = %v, ok = %v, want %v, ok = %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestWrap(t *testing.T) {
	type args struct {
		err     error
		message string
		details Details
	}
	tests := []struct {
		name string
		args args
		want Error
	}{
		{
			name: "with rich error",
			args: args{
				err: Error{
					Code:    ErrBadRequest,
					Kind:    KindSlotLocked,
					Message: "submission in flight",
				},
				message: "submit",
			},
			want: Error{
				Code:    ErrBadRequest,
				Kind:    KindSlotLocked,
				Message: "submit: submission in flight",
			},
		},
		{
			name: "with simple error",
			args: args{
				err:     errors.New("i am an error"),
				message: "do things",
			},
			want: Error{
				Code:    ErrUnexpected,
				Kind:    KindUnknown,
				Err:     errors.New("i am an error"),
				Message: "do things",
				Details: make(Details),
			},
		},
		{
			name: "with added details",
			args: args{
				err: Error{
					Code:    ErrNotFound,
					Kind:    KindUnknownMatch,
					Message: "unknown match",
				},
				message: "join",
				details: Details{"user": "north"},
			},
			want: Error{
				Code:    ErrNotFound,
				Kind:    KindUnknownMatch,
				Message: "join: unknown match",
				Details: Details{"user": "north"},
			},
		},
		{
			name: "with overwritten details",
			args: args{
				err: Error{
					Code:    ErrInternal,
					Message: "ouch",
					Details: Details{"user": "south"},
				},
				message: "submit",
				details: Details{"user": "north"},
			},
			want: Error{
				Code:    ErrInternal,
				Message: "submit: ouch",
				Details: Details{"user": "north", "_user": "south"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got, _ := Cast(Wrap(tt.args.err, tt.args.message, tt.args.details)); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Wrap() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIs(t *testing.T) {
	if !Is(Error{Code: ErrBadRequest, Kind: KindSequenceStale}, KindSequenceStale) {
		t.Error("Is() should match same kind")
	}
	if Is(Error{Code: ErrBadRequest, Kind: KindSlotLocked}, KindSequenceStale) {
		t.Error("Is() should not match different kind")
	}
	if Is(errors.New("plain"), KindSequenceStale) {
		t.Error("Is() should not match plain error")
	}
}

func TestBlameUser(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "bad request", err: Error{Code: ErrBadRequest}, want: true},
		{name: "protocol violation", err: Error{Code: ErrProtocolViolation}, want: true},
		{name: "not found", err: Error{Code: ErrNotFound}, want: true},
		{name: "internal", err: Error{Code: ErrInternal}, want: false},
		{name: "plain error", err: errors.New("plain"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BlameUser(tt.err); got != tt.want {
				t.Errorf("BlameUser() = %v, want %v", got, tt.want)
			}
		})
	}
}
