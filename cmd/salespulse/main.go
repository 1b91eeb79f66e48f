// SalesPulse - Sales analytics reports over your order database.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

package main

import "github.com/opensource-finance/salespulse/internal/cli"

func main() {
	cli.Execute()
}
