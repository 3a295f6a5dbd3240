package matching

import "github.com/amBITionV2/Crazy-developers-527A-AI-09/pkg/model"

// recipientsByDonor is the transfusion table: donor group -> groups it can give to.
var recipientsByDonor = map[model.BloodType][]model.BloodType{
	model.ONeg:  {model.ONeg, model.OPos, model.ANeg, model.APos, model.BNeg, model.BPos, model.ABNeg, model.ABPos},
	model.OPos:  {model.OPos, model.APos, model.BPos, model.ABPos},
	model.ANeg:  {model.ANeg, model.APos, model.ABNeg, model.ABPos},
	model.APos:  {model.APos, model.ABPos},
	model.BNeg:  {model.BNeg, model.BPos, model.ABNeg, model.ABPos},
	model.BPos:  {model.BPos, model.ABPos},
	model.ABNeg: {model.ABNeg, model.ABPos},
	model.ABPos: {model.ABPos},
}

// RecipientsForDonor lists the groups a donor of the given group can give to.
// Unknown groups yield nil.
func RecipientsForDonor(donor model.BloodType) []model.BloodType {
	rs := recipientsByDonor[donor]
	if rs == nil {
		return nil
	}
	out := make([]model.BloodType, len(rs))
	copy(out, rs)
	return out
}

// DonorsForRecipient is the inverse: the donor groups a patient of the given group can
// receive from, in the fixed order of model.AllBloodTypes.
func DonorsForRecipient(recipient model.BloodType) []model.BloodType {
	var out []model.BloodType
	for _, donor := range model.AllBloodTypes() {
		if CanDonate(donor, recipient) {
			out = append(out, donor)
		}
	}
	return out
}

// CanDonate reports whether blood of group donor can be transfused into recipient.
func CanDonate(donor, recipient model.BloodType) bool {
	for _, r := range recipientsByDonor[donor] {
		if r == recipient {
			return true
		}
	}
	return false
}
