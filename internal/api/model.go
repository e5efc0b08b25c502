// Copyright (c) 2022. Alvin Baena.
// SPDX-License-Identifier: MIT

package api

type hashRequest struct {
	Hash string `json:"hash" binding:"required"`
}

type bothRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type verdictResponse struct {
	Verdict string `json:"verdict"`
	// Found is true when any of the checked hashes is a known credential.
	Found bool `json:"found"`
}

type errorResponse struct {
	Error string `json:"error"`
}
