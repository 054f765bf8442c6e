// Copyright (C) MongoDB, Inc. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package failpoint configures failCommand fail points that target the status
// command. The server must run with enableTestCommands=1.
package failpoint

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

const (
	// ModeAlwaysOn enables the fail point until it is turned off.
	ModeAlwaysOn = "alwaysOn"

	// ModeOff disables the fail point.
	ModeOff = "off"

	failCommand = "failCommand"
)

// StatusCommands are the names the status command can be sent under.
var StatusCommands = []string{"hello", "isMaster", "ismaster"}

// FailPoint is passed as the command argument to RunCommand.
//
// For more information about fail points, see
// https://github.com/mongodb/specifications/tree/HEAD/source/transactions/tests#server-fail-point
type FailPoint struct {
	ConfigureFailPoint string `bson:"configureFailPoint"`
	// Mode is a string such as ModeAlwaysOn, or Times.
	Mode any  `bson:"mode"`
	Data Data `bson:"data"`
}

// Times enables the fail point for the given number of matching commands.
type Times struct {
	Times int32 `bson:"times"`
}

// Data configures how the fail point behaves once triggered.
type Data struct {
	FailCommands    []string `bson:"failCommands,omitempty"`
	CloseConnection bool     `bson:"closeConnection,omitempty"`
	ErrorCode       int32    `bson:"errorCode,omitempty"`
	BlockConnection bool     `bson:"blockConnection,omitempty"`
	BlockTimeMS     int32    `bson:"blockTimeMS,omitempty"`
	AppName         string   `bson:"appName,omitempty"`
}

// TeardownFunc turns a fail point off.
type TeardownFunc func(t *testing.T)

// Enable configures fp on the server client is connected to and returns a
// TeardownFunc that turns it off again.
func Enable(t *testing.T, client *mongo.Client, fp FailPoint) TeardownFunc {
	t.Helper()

	admin := client.Database("admin")
	require.NoError(t, admin.RunCommand(context.Background(), fp).Err(), "error enabling failpoint")

	return func(t *testing.T) {
		t.Helper()

		off := FailPoint{ConfigureFailPoint: fp.ConfigureFailPoint, Mode: ModeOff}
		require.NoError(t, admin.RunCommand(context.Background(), off).Err(), "error disabling failpoint")
	}
}

func statusCommandFailPoint(mode any, data Data) FailPoint {
	data.FailCommands = StatusCommands

	return FailPoint{ConfigureFailPoint: failCommand, Mode: mode, Data: data}
}

// NewStatusCommandErr makes the status command, sent by clients with the
// given app name, fail with errCode until turned off.
func NewStatusCommandErr(appName string, errCode int32) FailPoint {
	return statusCommandFailPoint(ModeAlwaysOn, Data{ErrorCode: errCode, AppName: appName})
}

// NewStatusCommandErrTimes is NewStatusCommandErr for the next n commands only.
func NewStatusCommandErrTimes(appName string, errCode int32, n int32) FailPoint {
	return statusCommandFailPoint(Times{Times: n}, Data{ErrorCode: errCode, AppName: appName})
}

// NewStatusCommandCloseConnection makes the server drop the connection of a
// client with the given app name when it sends the status command.
func NewStatusCommandCloseConnection(appName string) FailPoint {
	return statusCommandFailPoint(ModeAlwaysOn, Data{CloseConnection: true, AppName: appName})
}

// NewStatusCommandBlock delays the status command of clients with the given
// app name by d before it runs.
func NewStatusCommandBlock(appName string, d time.Duration) FailPoint {
	return statusCommandFailPoint(ModeAlwaysOn, Data{
		BlockConnection: true,
		BlockTimeMS:     int32(d / time.Millisecond),
		AppName:         appName,
	})
}
