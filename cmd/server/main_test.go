package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"roxtor/backend/internal/config"
)

const strongSecret = "0123456789abcdef0123456789abcdef"

func TestValidateSecurityConfigRejectsWeakValues(t *testing.T) {
	cases := map[string]config.Config{
		"short secret":   {AuthSecret: "short", LoginPIN: "482913", MasterPIN: "905174"},
		"short pin":      {AuthSecret: strongSecret, LoginPIN: "4829", MasterPIN: "905174"},
		"sequential pin": {AuthSecret: strongSecret, LoginPIN: "482913", MasterPIN: "987654"},
		"repeated pin":   {AuthSecret: strongSecret, LoginPIN: "777777", MasterPIN: "905174"},
		"letters":        {AuthSecret: strongSecret, LoginPIN: "48a913", MasterPIN: "905174"},
		"same pins":      {AuthSecret: strongSecret, LoginPIN: "482913", MasterPIN: "482913"},
		"missing master": {AuthSecret: strongSecret, LoginPIN: "482913"},
	}
	for name, cfg := range cases {
		assert.Error(t, validateSecurityConfig(cfg), name)
	}
}

func TestValidateSecurityConfigAcceptsStrongValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: strongSecret, LoginPIN: "482913", MasterPIN: "905174"})
	assert.NoError(t, err)
}
