// Package mocks holds testify mocks of the ports and infrastructure interfaces.
package mocks
