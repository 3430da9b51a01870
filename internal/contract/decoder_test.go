package contract

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"pollScope/internal/model"
)

func TestDecodePollCreated(t *testing.T) {
	votingABI, err := VotingABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	decoder, err := NewDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	creator := common.HexToAddress("0x1111111111111111111111111111111111111111")

	data, err := votingABI.Events["PollCreated"].Inputs.NonIndexed().Pack(uint8(1))
	if err != nil {
		t.Fatalf("pack: %v", err)
	}

	lg := buildLog(votingABI.Events["PollCreated"].ID, data, []common.Hash{
		topicFromUint64(42),
		topicFromAddress(creator),
	})

	event, err := decoder.Decode(lg, 56, 1700000000)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	created, ok := event.(*model.PollCreated)
	if !ok {
		t.Fatalf("decoded type mismatch: %T", event)
	}
	if created.PollID != 42 {
		t.Fatalf("poll id mismatch: %d", created.PollID)
	}
	if created.Creator != creator.Hex() {
		t.Fatalf("creator mismatch: %s", created.Creator)
	}
	if created.Mode != model.ModeManualPush {
		t.Fatalf("mode mismatch: %s", created.Mode)
	}

	meta := created.Meta()
	if meta.ChainID != 56 || meta.BlockNumber != 12345 || meta.LogIndex != 7 {
		t.Fatalf("meta mismatch: %+v", meta)
	}
	if meta.Timestamp != 1700000000 {
		t.Fatalf("timestamp mismatch: %d", meta.Timestamp)
	}
}

func TestDecodePollFunded(t *testing.T) {
	votingABI, err := VotingABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	decoder, err := NewDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	funder := common.HexToAddress("0x2222222222222222222222222222222222222222")
	token := common.HexToAddress("0x3333333333333333333333333333333333333333")

	data, err := votingABI.Events["PollFunded"].Inputs.NonIndexed().Pack(
		token,
		big.NewInt(500000),
	)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}

	lg := buildLog(votingABI.Events["PollFunded"].ID, data, []common.Hash{
		topicFromUint64(9),
		topicFromAddress(funder),
	})

	event, err := decoder.Decode(lg, 56, 1700000000)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	funded, ok := event.(*model.PollFunded)
	if !ok {
		t.Fatalf("decoded type mismatch: %T", event)
	}
	if funded.PollID != 9 || funded.Funder != funder.Hex() {
		t.Fatalf("fields mismatch: %+v", funded)
	}
	if funded.Token != token.Hex() || funded.Amount != "500000" {
		t.Fatalf("amount mismatch: %+v", funded)
	}
}

func TestDecodeVoted(t *testing.T) {
	votingABI, err := VotingABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	decoder, err := NewDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	voter := common.HexToAddress("0x4444444444444444444444444444444444444444")

	data, err := votingABI.Events["Voted"].Inputs.NonIndexed().Pack(big.NewInt(3))
	if err != nil {
		t.Fatalf("pack: %v", err)
	}

	lg := buildLog(votingABI.Events["Voted"].ID, data, []common.Hash{
		topicFromUint64(9),
		topicFromAddress(voter),
	})

	event, err := decoder.Decode(lg, 56, 1700000000)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	vote, ok := event.(*model.Voted)
	if !ok {
		t.Fatalf("decoded type mismatch: %T", event)
	}
	if vote.PollID != 9 || vote.Voter != voter.Hex() || vote.Option != "3" {
		t.Fatalf("fields mismatch: %+v", vote)
	}
}

func TestDecodeDistributionModeSet(t *testing.T) {
	votingABI, err := VotingABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	decoder, err := NewDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	data, err := votingABI.Events["DistributionModeSet"].Inputs.NonIndexed().Pack(uint8(2))
	if err != nil {
		t.Fatalf("pack: %v", err)
	}

	lg := buildLog(votingABI.Events["DistributionModeSet"].ID, data, []common.Hash{
		topicFromUint64(9),
	})

	event, err := decoder.Decode(lg, 56, 1700000000)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	modeSet, ok := event.(*model.DistributionModeSet)
	if !ok {
		t.Fatalf("decoded type mismatch: %T", event)
	}
	if modeSet.PollID != 9 || modeSet.Mode != model.ModeAutomated {
		t.Fatalf("fields mismatch: %+v", modeSet)
	}
}

func TestDecodePayoutEvents(t *testing.T) {
	votingABI, err := VotingABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	decoder, err := NewDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	recipient := common.HexToAddress("0x5555555555555555555555555555555555555555")
	token := common.HexToAddress("0x6666666666666666666666666666666666666666")

	cases := []struct {
		name string
	}{
		{name: "RewardDistributed"},
		{name: "RewardClaimed"},
		{name: "FundsWithdrawn"},
	}

	for _, tc := range cases {
		data, err := votingABI.Events[tc.name].Inputs.NonIndexed().Pack(
			token,
			big.NewInt(777),
		)
		if err != nil {
			t.Fatalf("pack %s: %v", tc.name, err)
		}

		lg := buildLog(votingABI.Events[tc.name].ID, data, []common.Hash{
			topicFromUint64(9),
			topicFromAddress(recipient),
		})

		event, err := decoder.Decode(lg, 56, 1700000000)
		if err != nil {
			t.Fatalf("decode %s: %v", tc.name, err)
		}

		switch ev := event.(type) {
		case *model.RewardDistributed:
			if tc.name != "RewardDistributed" || ev.Amount != "777" || ev.Recipient != recipient.Hex() {
				t.Fatalf("%s fields mismatch: %+v", tc.name, ev)
			}
		case *model.RewardClaimed:
			if tc.name != "RewardClaimed" || ev.Amount != "777" {
				t.Fatalf("%s fields mismatch: %+v", tc.name, ev)
			}
		case *model.FundsWithdrawn:
			if tc.name != "FundsWithdrawn" || ev.Amount != "777" {
				t.Fatalf("%s fields mismatch: %+v", tc.name, ev)
			}
		default:
			t.Fatalf("%s decoded type mismatch: %T", tc.name, event)
		}
	}
}

func TestDecodeUnknownTopic(t *testing.T) {
	decoder, err := NewDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	lg := buildLog(common.HexToHash("0xdeadbeef"), nil, nil)
	if _, err := decoder.Decode(lg, 56, 0); err == nil {
		t.Fatalf("expected error for unknown topic0")
	}

	if decoder.CanDecode(common.HexToHash("0xdeadbeef")) {
		t.Fatalf("unknown topic reported decodable")
	}
}

func TestDecoderTopicsCoverAllEvents(t *testing.T) {
	decoder, err := NewDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	if got := len(decoder.Topics()); got != 7 {
		t.Fatalf("expected 7 topics, got %d", got)
	}
}

func buildLog(topic0 common.Hash, data []byte, indexed []common.Hash) types.Log {
	topics := make([]common.Hash, 0, len(indexed)+1)
	topics = append(topics, topic0)
	topics = append(topics, indexed...)

	return types.Log{
		Address:     common.HexToAddress("0x7777777777777777777777777777777777777777"),
		Topics:      topics,
		Data:        data,
		BlockNumber: 12345,
		BlockHash:   common.HexToHash("0xabc"),
		TxHash:      common.HexToHash("0xdef"),
		Index:       7,
	}
}

func topicFromAddress(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}

func topicFromUint64(v uint64) common.Hash {
	return common.BigToHash(new(big.Int).SetUint64(v))
}
