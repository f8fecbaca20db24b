/*
Copyright 2025 Vendahub Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package tesouro

import (
	"context"

	"github.com/vendahub/tesouro/model"
)

type MockTesouro struct {
	Tesouro
	mockGetWithdrawal func(string) (*model.Withdrawal, error)
}

func (m *MockTesouro) GetWithdrawal(id string) (*model.Withdrawal, error) {
	if m.mockGetWithdrawal != nil {
		return m.mockGetWithdrawal(id)
	}
	return m.Tesouro.GetWithdrawal(context.Background(), id)
}
