package main

import (
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/shopspring/decimal"

	"github.com/invarch/daostake/internal/lib/staking"
)

func yesNo(prompt string) (string, error) {
	return (&promptui.Prompt{
		Label:     prompt,
		IsConfirm: true,
	}).Run()
}

// confirmSigning is the interactive authorization step: nothing is signed unless the user agrees.
func confirmSigning(account string, description string) bool {
	fmt.Printf("Account: %s\nCalls:   %s\n", account, description)
	result, _ := yesNo("Sign and submit")
	return result == "y"
}

// getAmount asks for an amount in whole tokens, checked the same way it will be validated before
// submission.
func getAmount(prompt string, req staking.StakeRequest, maxAmount decimal.Decimal) (string, error) {
	return (&promptui.Prompt{
		Label:   fmt.Sprintf("%s (max %s)", prompt, maxAmount.Shift(-staking.TokenDecimals)),
		Default: "",
		Validate: func(input string) error {
			req.Amount = input
			_, err := staking.ValidateStakeAmount(req)
			return err
		},
	}).Run()
}
