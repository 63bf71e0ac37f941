// Package mock provides test doubles for ragchat interfaces using function
// fields.
package mock
