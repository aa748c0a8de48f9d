package abac

import "testing"

func TestParsePolicyConditions_CompareNode(t *testing.T) {
	c, err := ParsePolicyConditions([]byte(`{"field":"subject.role","op":"eq","value":"org_admin"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.kind != kindCompare || c.Field != "subject.role" || c.CmpOp != OpEq {
		t.Fatalf("parsed condition = %+v, want a compare node on subject.role", c)
	}
}

func TestParsePolicyConditions_NestedAllAny(t *testing.T) {
	raw := []byte(`{"all":[{"field":"subject.role","op":"eq","value":"developer"},{"any":[{"field":"resource.owner_id","op":"eq","value":"u1"},{"field":"resource.team_id","op":"in","value":["t1","t2"]}]}]}`)
	c, err := ParsePolicyConditions(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.kind != kindAll || len(c.All) != 2 {
		t.Fatalf("expected a 2-element all node, got %+v", c)
	}
	if c.All[1].kind != kindAny || len(c.All[1].Any) != 2 {
		t.Fatalf("expected nested any node with 2 branches, got %+v", c.All[1])
	}
}

func TestParsePolicyConditions_UnknownOperatorRejected(t *testing.T) {
	_, err := ParsePolicyConditions([]byte(`{"field":"subject.role","op":"startswith","value":"x"}`))
	if err == nil {
		t.Fatal("expected an error for an unknown operator")
	}
}

func TestParsePolicyConditions_AmbiguousShapeRejected(t *testing.T) {
	_, err := ParsePolicyConditions([]byte(`{"field":"subject.role","op":"eq","value":"x","all":[]}`))
	if err == nil {
		t.Fatal("expected an error when both a compare and an all branch are present")
	}
}

func TestParsePolicyConditions_CompareMissingFieldRejected(t *testing.T) {
	_, err := ParsePolicyConditions([]byte(`{"op":"eq","value":"x"}`))
	if err == nil {
		t.Fatal("expected an error for a compare node with no field")
	}
}
